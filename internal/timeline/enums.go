package timeline

import (
	"fmt"
	"strings"
)

// MappingVersion identifies the persisted names below. Bump it and add a new
// table when a name changes; never reuse a retired name.
const MappingVersion = 1

type Filter int

const (
	FilterNone Filter = iota
	FilterBlackAndWhite
	FilterSepia
	FilterVintage
)

type TransitionType int

const (
	TransitionNone TransitionType = iota
	TransitionFade
	TransitionSlide
	TransitionDissolve
)

var filterNamesV1 = map[Filter]string{
	FilterNone:          "NONE",
	FilterBlackAndWhite: "BLACK_AND_WHITE",
	FilterSepia:         "SEPIA",
	FilterVintage:       "VINTAGE",
}

var transitionNamesV1 = map[TransitionType]string{
	TransitionNone:     "NONE",
	TransitionFade:     "FADE_IN_OUT",
	TransitionSlide:    "SLIDE",
	TransitionDissolve: "DISSOLVE",
}

// short aliases accepted from API and CLI input
var filterAliases = map[string]Filter{
	"none":            FilterNone,
	"black_and_white": FilterBlackAndWhite,
	"bw":              FilterBlackAndWhite,
	"grayscale":       FilterBlackAndWhite,
	"sepia":           FilterSepia,
	"vintage":         FilterVintage,
}

var transitionAliases = map[string]TransitionType{
	"none":        TransitionNone,
	"fade":        TransitionFade,
	"fade_in_out": TransitionFade,
	"slide":       TransitionSlide,
	"dissolve":    TransitionDissolve,
}

func (f Filter) String() string {
	if name, ok := filterNamesV1[f]; ok {
		return name
	}
	return fmt.Sprintf("Filter(%d)", int(f))
}

func (f Filter) Valid() bool {
	_, ok := filterNamesV1[f]
	return ok
}

func (t TransitionType) String() string {
	if name, ok := transitionNamesV1[t]; ok {
		return name
	}
	return fmt.Sprintf("TransitionType(%d)", int(t))
}

func (t TransitionType) Valid() bool {
	_, ok := transitionNamesV1[t]
	return ok
}

// ParseFilter accepts persisted names and lowercase aliases. Unknown names are
// rejected rather than mapped to a default.
func ParseFilter(s string) (Filter, error) {
	for f, name := range filterNamesV1 {
		if name == s {
			return f, nil
		}
	}
	if f, ok := filterAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return f, nil
	}
	return FilterNone, fmt.Errorf("unknown filter %q", s)
}

func ParseTransition(s string) (TransitionType, error) {
	for t, name := range transitionNamesV1 {
		if name == s {
			return t, nil
		}
	}
	if t, ok := transitionAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return t, nil
	}
	return TransitionNone, fmt.Errorf("unknown transition %q", s)
}

func (f Filter) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("invalid filter %d", int(f))
	}
	return []byte(f.String()), nil
}

func (f *Filter) UnmarshalText(b []byte) error {
	parsed, err := ParseFilter(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

func (t TransitionType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid transition %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *TransitionType) UnmarshalText(b []byte) error {
	parsed, err := ParseTransition(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
