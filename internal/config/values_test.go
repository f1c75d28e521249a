package config

import "testing"

func TestValuesValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(v *Values)
		wantErr bool
	}{
		{"defaults ok", func(v *Values) {}, false},
		{"bad log level", func(v *Values) { v.LogLevel = "verbose" }, true},
		{"bad log format", func(v *Values) { v.LogFormat = "xml" }, true},
		{"empty listen addr", func(v *Values) { v.HTTPListen = "" }, true},
		{"listen addr missing colon", func(v *Values) { v.HTTPListen = "8642" }, true},
		{"listen addr host:port ok", func(v *Values) { v.HTTPListen = "127.0.0.1:8642" }, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := defaultValues()
			tc.mutate(&v)
			err := v.validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected an error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	}
}
