package util

import (
	"testing"

	"github.com/ValentinKolb/cellwire/lib/cells"
	"github.com/ValentinKolb/cellwire/rpc/common"
	"github.com/spf13/viper"
)

func TestParseTimestamp(t *testing.T) {
	testCases := []struct {
		in        string
		want      int64
		expectErr bool
	}{
		{in: "", want: cells.TimestampAutoAssign},
		{in: "auto", want: cells.TimestampAutoAssign},
		{in: "null", want: cells.TimestampNull},
		{in: "42", want: 42},
		{in: "-7", want: -7},
		{in: "yesterday", expectErr: true},
		{in: "-9223372036854775807", expectErr: true}, // TimestampNull
	}

	for _, tc := range testCases {
		got, err := ParseTimestamp(tc.in)
		if tc.expectErr {
			if err == nil {
				t.Errorf("ParseTimestamp(%q): expected error, got %d", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimestamp(%q): unexpected error: %v", tc.in, err)
		} else if got != tc.want {
			t.Errorf("ParseTimestamp(%q): expected %d, got %d", tc.in, tc.want, got)
		}
	}

	if ts, err := ParseTimestamp("now"); err != nil || cells.IsSentinel(ts) {
		t.Errorf("ParseTimestamp(now): got %d, %v", ts, err)
	}
}

func TestGetMutatorFlags(t *testing.T) {
	defer viper.Reset()

	if flags := GetMutatorFlags(); flags != 0 {
		t.Errorf("expected no flags, got %d", flags)
	}

	viper.Set("create", true)
	viper.Set("no-log-sync", true)
	flags := GetMutatorFlags()
	if !flags.Has(common.MutatorFlagIgnoreUnknownCFs) || !flags.Has(common.MutatorFlagNoLogSync) {
		t.Errorf("expected create and no-log-sync, got %d", flags)
	}
	if flags.Has(common.MutatorFlagNoLog) {
		t.Errorf("no-log should not be set")
	}
}

func TestSelectTransport(t *testing.T) {
	defer viper.Reset()

	for _, name := range []string{"http", "tcp", "unix"} {
		viper.Set("transport", name)
		if _, err := GetTransport(); err != nil {
			t.Errorf("client transport %s: %v", name, err)
		}
		if _, err := GetServerTransport(); err != nil {
			t.Errorf("server transport %s: %v", name, err)
		}
	}

	viper.Set("transport", "pigeon")
	if _, err := GetTransport(); err == nil {
		t.Errorf("expected error for unknown transport")
	}
}
