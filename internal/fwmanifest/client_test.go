package fwmanifest

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseGrammar(t *testing.T) {
	cases := []struct {
		in      string
		wantErr bool
		custom  bool
	}{
		{"official@release", false, false},
		{"momentum@development", false, false},
		{"unleashed@release-candidate", false, false},
		{"official@nightly", true, false},
		{"bogus@release", true, false},
		{"https://example.com/my.tgz", false, true},
		{"not a url and not source@channel", true, false},
	}
	for _, c := range cases {
		f, err := Parse(c.in)
		if (err != nil) != c.wantErr {
			t.Errorf("Parse(%q) error = %v, wantErr %v", c.in, err, c.wantErr)
			continue
		}
		if err == nil && f.IsCustom() != c.custom {
			t.Errorf("Parse(%q).IsCustom() = %v, want %v", c.in, f.IsCustom(), c.custom)
		}
	}
}

func TestDefaultFirmware(t *testing.T) {
	d := Default()
	if d.Source != SourceOfficial || d.Channel != ChannelRelease {
		t.Errorf("Default() = %+v, want official@release", d)
	}
	if d.String() != "official@release" {
		t.Errorf("String() = %q", d.String())
	}
}

func TestResolvePicksLatestUpdateTgz(t *testing.T) {
	const body = `{
		"channels": [
			{
				"id": "release",
				"title": "Release",
				"description": "",
				"versions": [
					{
						"version": "1.2.3",
						"changelog": "",
						"timestamp": 1700000000,
						"files": [
							{"url": "https://example.com/update.dfu", "target": "f7", "type": "update_dfu", "sha256": "aa"},
							{"url": "https://example.com/update.tgz", "target": "f7", "type": "update_tgz", "sha256": "bb"}
						]
					}
				]
			}
		]
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	directoryURL[SourceOfficial] = srv.URL
	defer func() { directoryURL[SourceOfficial] = "https://update.flipperzero.one/firmware/directory.json" }()

	c := NewClient()
	art, err := c.Resolve(Firmware{Source: SourceOfficial, Channel: ChannelRelease})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if art.URL != "https://example.com/update.tgz" || art.SHA256 != "bb" {
		t.Errorf("Resolve = %+v, want update.tgz/bb", art)
	}
}

func TestResolveRejectsCustom(t *testing.T) {
	c := NewClient()
	if _, err := c.Resolve(Firmware{Custom: "https://example.com/x.tgz"}); err == nil {
		t.Errorf("Resolve on custom firmware should fail")
	}
}
