package models

import "time"

// BroadcastType is the content category occupying a frequency slot
type BroadcastType string

const (
	BroadcastVoice   BroadcastType = "voice"
	BroadcastMorse   BroadcastType = "morse"
	BroadcastNumbers BroadcastType = "numbers"
	BroadcastAmbient BroadcastType = "ambient"
	BroadcastStatic  BroadcastType = "static"
)

func (b BroadcastType) Valid() bool {
	switch b {
	case BroadcastVoice, BroadcastMorse, BroadcastNumbers, BroadcastAmbient, BroadcastStatic:
		return true
	}
	return false
}

// SourceType says which collection a frequency's SourceID points into
type SourceType string

const (
	SourceCharacter SourceType = "character"
	SourceSignal    SourceType = "signal"
)

type Disposition string

const (
	DispositionFriendly   Disposition = "friendly"
	DispositionSuspicious Disposition = "suspicious"
	DispositionHostile    Disposition = "hostile"
	DispositionNeutral    Disposition = "neutral"
)

type SignalType string

const (
	SignalMorse   SignalType = "morse"
	SignalNumbers SignalType = "numbers"
	SignalAmbient SignalType = "ambient"
)

type RewardType string

const (
	RewardFrequency RewardType = "frequency"
	RewardInfo      RewardType = "info"
	RewardPassword  RewardType = "password"
	RewardStoryBeat RewardType = "story_beat"
)

// KnowledgeFact is one topic a character can talk about. Characters keep
// their facts as an ordered list so trust-gated prefixes are stable.
type KnowledgeFact struct {
	Topic string `bson:"topic" json:"topic" yaml:"topic"`
	Fact  string `bson:"fact" json:"fact" yaml:"fact"`
}

// Relationship describes how a character feels about another name on the band
type Relationship struct {
	Name     string `bson:"name" json:"name" yaml:"name"`
	Relation string `bson:"relation" json:"relation" yaml:"relation"`
}

// Character is a voice on the band, driven by the dialogue engine
type Character struct {
	ID                 string          `bson:"_id" json:"id"`
	Callsign           string          `bson:"callsign" json:"callsign"`
	DisplayName        string          `bson:"display_name,omitempty" json:"display_name,omitempty"`
	Frequency          float64         `bson:"frequency" json:"frequency"`
	VoiceID            string          `bson:"voice_id" json:"voice_id"`
	VoiceDescription   string          `bson:"voice_description,omitempty" json:"voice_description,omitempty"`
	PersonalityPrompt  string          `bson:"personality_prompt" json:"personality_prompt"`
	SpeakingStyle      string          `bson:"speaking_style,omitempty" json:"speaking_style,omitempty"`
	Background         string          `bson:"background,omitempty" json:"background,omitempty"`
	Knowledge          []KnowledgeFact `bson:"knowledge" json:"knowledge"`
	Secrets            []string        `bson:"secrets" json:"secrets"`
	Relationships      []Relationship  `bson:"relationships" json:"relationships"`
	InitialDisposition Disposition     `bson:"initial_disposition" json:"initial_disposition"`
	IsActive           bool            `bson:"is_active" json:"is_active"`
	CreatedAt          time.Time       `bson:"created_at" json:"created_at"`
}

type Reward struct {
	Type  RewardType `bson:"type" json:"type" yaml:"type"`
	Value string     `bson:"value" json:"value" yaml:"value"`
}

// Signal is an automated broadcast: morse, a numbers station or ambience
type Signal struct {
	ID               string     `bson:"_id" json:"id"`
	SignalType       SignalType `bson:"signal_type" json:"signal_type"`
	Frequency        float64    `bson:"frequency" json:"frequency"`
	ContentText      string     `bson:"content_text,omitempty" json:"content_text,omitempty"`
	ContentEncoded   string     `bson:"content_encoded,omitempty" json:"content_encoded,omitempty"`
	CipherType       string     `bson:"cipher_type,omitempty" json:"cipher_type,omitempty"`
	CipherKey        string     `bson:"cipher_key,omitempty" json:"cipher_key,omitempty"`
	NarrativeTrigger string     `bson:"narrative_trigger,omitempty" json:"narrative_trigger,omitempty"`
	Reward           *Reward    `bson:"reward,omitempty" json:"reward,omitempty"`
	IsLooping        bool       `bson:"is_looping" json:"is_looping"`
	IsActive         bool       `bson:"is_active" json:"is_active"`
	CreatedAt        time.Time  `bson:"created_at" json:"created_at"`
}

// Frequency is a slot on the tuning dial, keyed by its rounded value
type Frequency struct {
	ID             string        `bson:"_id" json:"id"`
	Frequency      float64       `bson:"frequency" json:"frequency"`
	BroadcastType  BroadcastType `bson:"broadcast_type" json:"broadcast_type"`
	SourceType     SourceType    `bson:"source_type,omitempty" json:"source_type,omitempty"`
	SourceID       string        `bson:"source_id,omitempty" json:"source_id,omitempty"`
	IsDiscoverable bool          `bson:"is_discoverable" json:"is_discoverable"`
	RequiresFlag   string        `bson:"requires_flag,omitempty" json:"requires_flag,omitempty"`
	Label          string        `bson:"label,omitempty" json:"label,omitempty"`
	StaticLevel    float64       `bson:"static_level" json:"static_level"`
	UpdatedAt      time.Time     `bson:"updated_at" json:"updated_at"`
}

// FrequencyInfo is the client-facing view of a slot in the frequency map
type FrequencyInfo struct {
	Frequency      float64       `json:"frequency"`
	BroadcastType  BroadcastType `json:"broadcastType"`
	Label          string        `json:"label,omitempty"`
	IsDiscoverable bool          `json:"isDiscoverable"`
}
