package deeplink

import "strings"

// Kind is the closed set of route kinds a start parameter can resolve to.
type Kind string

const (
	KindNone        Kind = ""
	KindBuy         Kind = "buy"
	KindHelp        Kind = "help"
	KindLeaderboard Kind = "leaderboard"
	KindTrack       Kind = "track"
	KindProject     Kind = "project"
	KindArtist      Kind = "artist"
	KindPlaylist    Kind = "playlist"
	KindGenerate    Kind = "generate"
	KindProfile     Kind = "profile"
	KindRef         Kind = "ref"
)

type Token struct {
	Kind  Kind
	Value string
}

var exactTokens = map[string]Kind{
	"buy":         KindBuy,
	"help":        KindHelp,
	"leaderboard": KindLeaderboard,
}

// Prefix patterns are checked in this order after the exact dictionary. Order
// matters: a new pattern that is a prefix of an existing one must come first.
var prefixPatterns = []struct {
	prefix string
	kind   Kind
}{
	{"track_", KindTrack},
	{"project_", KindProject},
	{"artist_", KindArtist},
	{"playlist_", KindPlaylist},
	{"generate_", KindGenerate},
	{"profile_", KindProfile},
	{"ref_", KindRef},
}

// Parse is total: any input, including empty or unmatched strings, resolves to
// a Token; unknown input gets KindNone. The raw parameter is partner and
// attacker controlled, so nothing here may panic or error.
func Parse(raw string) Token {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Token{}
	}
	if kind, ok := exactTokens[raw]; ok {
		return Token{Kind: kind}
	}
	for _, p := range prefixPatterns {
		if strings.HasPrefix(raw, p.prefix) {
			return Token{Kind: p.kind, Value: raw[len(p.prefix):]}
		}
	}
	return Token{}
}

// Generate is the inverse of Parse for recognized kinds:
// Parse(Generate(k, v)).Value == v for every kind that carries a value.
func Generate(kind Kind, value string) string {
	for keyword, k := range exactTokens {
		if k == kind {
			return keyword
		}
	}
	for _, p := range prefixPatterns {
		if p.kind == kind {
			return p.prefix + value
		}
	}
	return ""
}
