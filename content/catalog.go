package content

import (
	_ "embed"
	"errors"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"frequency/frequency"
	"frequency/models"
)

//go:embed seed.yaml
var seedYAML []byte

type CharacterSeed struct {
	Callsign           string                 `yaml:"callsign"`
	DisplayName        string                 `yaml:"display_name"`
	Frequency          float64                `yaml:"frequency"`
	VoiceID            string                 `yaml:"voice_id"`
	VoiceDescription   string                 `yaml:"voice_description"`
	PersonalityPrompt  string                 `yaml:"personality_prompt"`
	SpeakingStyle      string                 `yaml:"speaking_style"`
	Background         string                 `yaml:"background"`
	InitialDisposition models.Disposition     `yaml:"initial_disposition"`
	Knowledge          []models.KnowledgeFact `yaml:"knowledge"`
	Secrets            []string               `yaml:"secrets"`
	Relationships      []models.Relationship  `yaml:"relationships"`
	Inactive           bool                   `yaml:"inactive"`
	Slot               `yaml:",inline"`
}

type SignalSeed struct {
	SignalType       models.SignalType `yaml:"signal_type"`
	Frequency        float64           `yaml:"frequency"`
	ContentText      string            `yaml:"content_text"`
	CipherType       string            `yaml:"cipher_type"`
	CipherKey        string            `yaml:"cipher_key"`
	NarrativeTrigger string            `yaml:"narrative_trigger"`
	Reward           *models.Reward    `yaml:"reward"`
	Looping          bool              `yaml:"looping"`
	Inactive         bool              `yaml:"inactive"`
	Slot             `yaml:",inline"`
}

// Slot is the dial presentation shared by characters and signals.
type Slot struct {
	Label        string  `yaml:"label"`
	StaticLevel  float64 `yaml:"static_level"`
	RequiresFlag string  `yaml:"requires_flag"`
	Hidden       bool    `yaml:"hidden"`
}

type StaticSeed struct {
	Frequency   float64 `yaml:"frequency"`
	StaticLevel float64 `yaml:"static_level"`
}

// Catalog is the whole authored band.
type Catalog struct {
	Characters []CharacterSeed `yaml:"characters"`
	Signals    []SignalSeed    `yaml:"signals"`
	Static     []StaticSeed    `yaml:"static"`
}

// Default returns the catalog shipped with the binary.
func Default() (*Catalog, error) {
	return Parse(seedYAML)
}

// Parse decodes and validates a catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks band limits, one broadcast per value, and references.
func (c *Catalog) Validate() error {
	var errs []error
	owners := map[float64]string{}
	callsigns := map[string]bool{}

	claim := func(f float64, what string) {
		if f < frequency.MinFrequency || f > frequency.MaxFrequency {
			errs = append(errs, fmt.Errorf("%s: %.3f is outside the band", what, f))
		}
		if prev, ok := owners[frequency.Round(f)]; ok {
			errs = append(errs, fmt.Errorf("%s: %.3f already used by %s", what, f, prev))
			return
		}
		owners[frequency.Round(f)] = what
	}

	for _, ch := range c.Characters {
		what := "character " + ch.Callsign
		if ch.Callsign == "" {
			errs = append(errs, errors.New("character without callsign"))
			continue
		}
		if callsigns[ch.Callsign] {
			errs = append(errs, fmt.Errorf("%s: duplicate callsign", what))
		}
		callsigns[ch.Callsign] = true
		if ch.PersonalityPrompt == "" {
			errs = append(errs, fmt.Errorf("%s: personality_prompt required", what))
		}
		switch ch.InitialDisposition {
		case models.DispositionFriendly, models.DispositionSuspicious, models.DispositionHostile, models.DispositionNeutral, "":
		default:
			errs = append(errs, fmt.Errorf("%s: unknown disposition %q", what, ch.InitialDisposition))
		}
		claim(ch.Frequency, what)
	}

	for _, s := range c.Signals {
		what := fmt.Sprintf("%s signal", s.SignalType)
		switch s.SignalType {
		case models.SignalMorse, models.SignalNumbers, models.SignalAmbient:
		default:
			errs = append(errs, fmt.Errorf("signal at %.3f: unknown type %q", s.Frequency, s.SignalType))
		}
		if r := s.Reward; r != nil {
			errs = append(errs, validateReward(r, what)...)
		}
		claim(s.Frequency, what)
	}

	for _, st := range c.Static {
		if st.Frequency < frequency.MinFrequency || st.Frequency > frequency.MaxFrequency {
			errs = append(errs, fmt.Errorf("static slot %.3f is outside the band", st.Frequency))
		}
		if prev, ok := owners[frequency.Round(st.Frequency)]; ok {
			errs = append(errs, fmt.Errorf("static slot %.3f collides with %s", st.Frequency, prev))
		}
	}

	return errors.Join(errs...)
}

func validateReward(r *models.Reward, what string) []error {
	switch r.Type {
	case models.RewardFrequency:
		f, err := strconv.ParseFloat(r.Value, 64)
		if err != nil {
			return []error{fmt.Errorf("%s: frequency reward %q is not a number", what, r.Value)}
		}
		if f < frequency.MinFrequency || f > frequency.MaxFrequency {
			return []error{fmt.Errorf("%s: frequency reward %.3f is outside the band", what, f)}
		}
	case models.RewardInfo, models.RewardPassword, models.RewardStoryBeat:
		if r.Value == "" {
			return []error{fmt.Errorf("%s: %s reward needs a value", what, r.Type)}
		}
	default:
		return []error{fmt.Errorf("%s: unknown reward type %q", what, r.Type)}
	}
	return nil
}
