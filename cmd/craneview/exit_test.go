package main

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/urfave/cli/v2"
)

func TestExitErrHandler_NilError(t *testing.T) {
	called := false
	osExit = func(int) { called = true }
	t.Cleanup(func() { osExit = os.Exit })

	exitErrHandler(nil, nil)
	if called {
		t.Error("nil error should not exit")
	}
}

func TestReportExit(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantOut  string
	}{
		{
			name:     "success no message",
			err:      cli.Exit("", 0),
			wantCode: 0,
			wantOut:  "",
		},
		{
			name:     "usage error",
			err:      cli.Exit("unknown dialect: xml", 1),
			wantCode: 1,
			wantOut:  "unknown dialect: xml\n",
		},
		{
			name:     "connection failure",
			err:      cli.Exit("connect failed: dial refused", 2),
			wantCode: 2,
			wantOut:  "connect failed: dial refused\n",
		},
		{
			name:     "backend exception without message",
			err:      cli.Exit("", 3),
			wantCode: 3,
			wantOut:  "",
		},
		{
			name:     "wrapped exit coder",
			err:      errors.Join(errors.New("context"), cli.Exit("inner", 42)),
			wantCode: 42,
			wantOut:  "inner\n",
		},
		{
			name:     "plain error",
			err:      errors.New("boom"),
			wantCode: 1,
			wantOut:  "Error: boom\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			code := reportExit(&buf, tt.err)
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			if buf.String() != tt.wantOut {
				t.Errorf("output = %q, want %q", buf.String(), tt.wantOut)
			}
		})
	}
}

func TestExitErrHandler_UsesExitCode(t *testing.T) {
	var got int
	osExit = func(code int) { got = code }
	t.Cleanup(func() { osExit = os.Exit })

	exitErrHandler(nil, cli.Exit("", 3))
	if got != 3 {
		t.Errorf("exit code = %d, want 3", got)
	}
}

func TestNewApp_Commands(t *testing.T) {
	app := newApp()
	want := []string{"connect", "send", "replay", "history", "version"}
	if len(app.Commands) != len(want) {
		t.Fatalf("got %d commands, want %d", len(app.Commands), len(want))
	}
	for i, name := range want {
		if app.Commands[i].Name != name {
			t.Errorf("command %d = %q, want %q", i, app.Commands[i].Name, name)
		}
	}
}
