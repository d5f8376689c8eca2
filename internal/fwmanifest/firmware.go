// Package fwmanifest resolves a firmware selection string to a downloadable
// artifact, fetching the upstream directory.json manifests over HTTP the
// way google-slothfs/gitiles fetches Gitiles JSON: rate-limited, with an
// XSS-guard-free plain JSON body (the Flipper directories carry none).
package fwmanifest

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// Channel is a firmware release channel.
type Channel string

const (
	ChannelRelease          Channel = "release"
	ChannelReleaseCandidate Channel = "release-candidate"
	ChannelDevelopment      Channel = "development"
)

// Source identifies a published firmware distribution.
type Source string

const (
	SourceOfficial  Source = "official"
	SourceUnleashed Source = "unleashed"
	SourceMomentum  Source = "momentum"
)

// directoryURL is the single hardcoded manifest URL per published source
// (spec.md §6).
var directoryURL = map[Source]string{
	SourceOfficial:  "https://update.flipperzero.one/firmware/directory.json",
	SourceUnleashed: "https://up.unleashedflip.com/directory.json",
	SourceMomentum:  "https://up.momentum-fw.dev/firmware/directory.json",
}

// Firmware is the tagged firmware selection of spec.md §3: a published
// source+channel pair, or an arbitrary custom URL.
type Firmware struct {
	Source  Source  // empty when Custom is set
	Channel Channel // empty when Custom is set
	Custom  string  // non-empty only for a custom URL
}

// Default returns the tagged variant the original implementation treats as
// the zero value: Official(release).
func Default() Firmware {
	return Firmware{Source: SourceOfficial, Channel: ChannelRelease}
}

// IsCustom reports whether f names an arbitrary URL rather than a published
// source+channel.
func (f Firmware) IsCustom() bool { return f.Custom != "" }

// String renders f using the spec.md §6 grammar: "<source>@<channel>" or a
// bare URL for Custom.
func (f Firmware) String() string {
	if f.IsCustom() {
		return f.Custom
	}
	return fmt.Sprintf("%s@%s", f.Source, f.Channel)
}

// Parse decodes the spec.md §6 firmware string grammar:
// "<source>@<channel>" where source is official|unleashed|momentum and
// channel is release|release-candidate|development; anything else must
// parse as a URL, yielding a Custom firmware.
func Parse(s string) (Firmware, error) {
	if source, channel, ok := strings.Cut(s, "@"); ok {
		src := Source(source)
		if _, known := directoryURL[src]; !known {
			return Firmware{}, errors.Errorf("firmware: unknown source %q", source)
		}
		ch := Channel(channel)
		switch ch {
		case ChannelRelease, ChannelReleaseCandidate, ChannelDevelopment:
		default:
			return Firmware{}, errors.Errorf("firmware: unknown channel %q", channel)
		}
		return Firmware{Source: src, Channel: ch}, nil
	}

	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Firmware{}, errors.Errorf("firmware: %q is neither <source>@<channel> nor a URL", s)
	}
	return Firmware{Custom: u.String()}, nil
}
