package detector

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Lists bundles every configurable word and domain list the detectors consume.
// Lists load from JSON and export back to the same shape, so a round-trip
// reproduces identical detector behavior.
type Lists struct {
	// Badwords maps a category (offensive, abusive, sexual, racist, spam,
	// scam) to its word list.
	Badwords map[string][]string `json:"badwords"`
	// Whitelist words are never treated as badwords even when matched.
	Whitelist      []string `json:"whitelist"`
	SpamPhrases    []string `json:"spam_phrases"`
	AllowedDomains []string `json:"allowed_domains"`
	BlockedDomains []string `json:"blocked_domains"`
}

func LoadLists(r io.Reader) (Lists, error) {
	var l Lists
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&l); err != nil {
		return Lists{}, fmt.Errorf("parsing lists: %w", err)
	}
	return l, nil
}

func LoadListsFile(path string) (Lists, error) {
	f, err := os.Open(path)
	if err != nil {
		return Lists{}, fmt.Errorf("opening lists file: %w", err)
	}
	defer f.Close()
	return LoadLists(f)
}

func (l Lists) Export(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(l)
}

// DefaultLists returns the stock domain lists. Word lists ship empty;
// deployments load their own.
func DefaultLists() Lists {
	return Lists{
		Badwords:  map[string][]string{},
		Whitelist: nil,
		SpamPhrases: []string{
			"make money fast",
			"click here",
			"limited offer",
			"free followers",
		},
		AllowedDomains: []string{
			"telegram.org",
			"github.com",
			"wikipedia.org",
			"youtube.com",
			"google.com",
			"reddit.com",
			"stackoverflow.com",
			"medium.com",
		},
		BlockedDomains: []string{
			"bit.ly",
			"tinyurl.com",
			"goo.gl",
			"ow.ly",
			"adf.ly",
			"shorte.st",
			"bc.vc",
			"ouo.io",
			"linkbucks.com",
		},
	}
}
