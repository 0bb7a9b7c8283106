package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/phoenix-garage/garage/internal/app"
	_ "github.com/phoenix-garage/garage/testing"
)

func TestTestModeIsSet(t *testing.T) {
	app.RefreshTestMode()
	require.True(t, app.InTestMode())
}

func TestRunDispatch(t *testing.T) {
	cases := []struct {
		name   string
		args   []string
		code   int
		stdout string
		stderr string
	}{
		{name: "help", args: []string{"help"}, code: 0, stdout: "import-legacy --file F"},
		{name: "unknown", args: []string{"frobnicate"}, code: 2, stderr: `unknown command "frobnicate"`},
		{name: "migrate direction", args: []string{"migrate", "sideways"}, code: 2, stderr: "direction must be up or down"},
		{name: "enqueue arity", args: []string{"enqueue"}, code: 2, stderr: "inventory:status-audit"},
		{name: "import bad flag", args: []string{"import-legacy", "--nope"}, code: 2, stderr: "flag provided but not defined"},
		{name: "import dry without file", args: []string{"import-legacy"}, code: 1, stderr: "--file is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
			code := run(tc.args, strings.NewReader(""), stdout, stderr)
			require.Equal(t, tc.code, code, stderr.String())
			require.Contains(t, stdout.String(), tc.stdout)
			require.Contains(t, stderr.String(), tc.stderr)
		})
	}
}
