package lode

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/craneview/types"
)

// ErrNoSummaryFound is returned when no session summary exists in the dataset.
var ErrNoSummaryFound = errors.New("no session summary found")

// PoseQuery filters pose history. Zero fields match everything.
type PoseQuery struct {
	SessionID string
	Day       string
	// FromRevision drops records with a lower revision.
	FromRevision uint64
	// Last keeps only the newest N records after filtering.
	Last int
}

type poseKey struct {
	session  string
	revision uint64
}

// QueryPoses reads pose records matching q, ordered by session then
// revision. A record present in more than one snapshot is returned once.
func QueryPoses(ctx context.Context, ds lode.Dataset, q PoseQuery) ([]*types.PoseRecord, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, string(ds.ID())+"/snapshots")
	}

	seen := make(map[poseKey]struct{})
	var out []*types.PoseRecord
	for _, snap := range snapshots {
		if !inPartition(snap, "record_kind", RecordKindPose) ||
			!inPartition(snap, "session_id", q.SessionID) ||
			!inPartition(snap, "day", q.Day) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", ds.ID(), snap.ID))
		}

		// Manifest paths are a coarse pre-filter; record fields are
		// authoritative.
		for _, item := range data {
			if recordKind(item) != RecordKindPose {
				continue
			}
			m := item.(map[string]any)
			if q.Day != "" && toString(m["day"]) != q.Day {
				continue
			}
			rec := &types.PoseRecord{}
			if err := decodeRecord(item, rec); err != nil {
				return nil, err
			}
			if q.SessionID != "" && rec.SessionID != q.SessionID {
				continue
			}
			if rec.Revision < q.FromRevision {
				continue
			}
			key := poseKey{rec.SessionID, rec.Revision}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, rec)
		}
	}

	slices.SortFunc(out, func(a, b *types.PoseRecord) int {
		return cmp.Or(cmp.Compare(a.SessionID, b.SessionID), cmp.Compare(a.Revision, b.Revision))
	})
	if q.Last > 0 && len(out) > q.Last {
		out = out[len(out)-q.Last:]
	}
	return out, nil
}

// QueryLatestSummary finds the most recent session summary. sessionID
// filters when non-empty.
func QueryLatestSummary(ctx context.Context, ds lode.Dataset, sessionID string) (SessionSummary, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return SessionSummary{}, WrapReadError(err, string(ds.ID())+"/snapshots")
	}

	// Snapshots are ordered by creation time; walk newest first.
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !inPartition(snap, "record_kind", RecordKindSummary) ||
			!inPartition(snap, "session_id", sessionID) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return SessionSummary{}, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", ds.ID(), snap.ID))
		}
		for j := len(data) - 1; j >= 0; j-- {
			if recordKind(data[j]) != RecordKindSummary {
				continue
			}
			var s SessionSummary
			if err := decodeRecord(data[j], &s); err != nil {
				return SessionSummary{}, err
			}
			if sessionID != "" && s.SessionID != sessionID {
				continue
			}
			return s, nil
		}
	}
	return SessionSummary{}, ErrNoSummaryFound
}

// inPartition reports whether any file of snap lies under key=value. An
// empty value matches every snapshot.
func inPartition(snap *lode.DatasetSnapshot, key, value string) bool {
	if value == "" {
		return true
	}
	for _, f := range snap.Manifest.Files {
		if hasSegment(f.Path, key+"="+value) {
			return true
		}
	}
	return false
}

// hasSegment matches whole path elements only, so session_id=s-1 does not
// match session_id=s-10.
func hasSegment(p, segment string) bool {
	for elem := range strings.SplitSeq(p, "/") {
		if elem == segment {
			return true
		}
	}
	return false
}
