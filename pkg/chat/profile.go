package chat

import (
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/ethanbaker/coach/pkg/sdk"
	"github.com/ethanbaker/coach/pkg/utils"
	"gopkg.in/yaml.v3"
)

// BusyPolicy decides what a send does while a run is still active
type BusyPolicy string

const (
	BusyReject    BusyPolicy = "reject"    // Ignore the new message
	BusySupersede BusyPolicy = "supersede" // Cancel the active run and start a new one
)

const (
	ProfileCommandCenter    = "command-center"
	ProfileOrganizationChat = "organization-chat"

	defaultFailureMessage = "Sorry, I couldn't reach the coach just now. Please try again."
	defaultGreeting       = "Hi! I'm your coach. What would you like to work on today?"
)

// GreetingFunc builds the message shown when a conversation starts fresh
type GreetingFunc func() Message

// Profile parameterizes a conversation for one calling surface
type Profile struct {
	Source              string         `yaml:"source"`                // Context/source tag sent with every request
	ContextData         map[string]any `yaml:"context_data"`          // Extra context fields sent as metadata
	AttachedResourceIDs []string       `yaml:"attached_resource_ids"` // Resources attached to every message
	FailureMessage      string         `yaml:"failure_message"`       // Appended on transport failures; empty disables
	BusyPolicy          BusyPolicy     `yaml:"busy_policy"`

	GreetingText    string      `yaml:"greeting"`
	GreetingFile    string      `yaml:"greeting_file"`
	GreetingSpeaker sdk.Speaker `yaml:"greeting_speaker"`

	Greeting GreetingFunc `yaml:"-"`
}

// CommandCenterProfile greets the user when a conversation starts
func CommandCenterProfile() Profile {
	p := Profile{
		Source:          ProfileCommandCenter,
		FailureMessage:  defaultFailureMessage,
		BusyPolicy:      BusyReject,
		GreetingText:    defaultGreeting,
		GreetingSpeaker: sdk.SpeakerCoach,
	}
	p.Greeting = p.greetingFromText()
	return p
}

// OrganizationChatProfile carries the organization id as context and does not greet
func OrganizationChatProfile(organizationID string) Profile {
	return Profile{
		Source:         ProfileOrganizationChat,
		ContextData:    map[string]any{"organizationId": organizationID},
		FailureMessage: defaultFailureMessage,
		BusyPolicy:     BusyReject,
	}
}

// metadata builds the request metadata for this profile
func (p Profile) metadata() sdk.ChatMetadata {
	return sdk.ChatMetadata{
		Source:              p.Source,
		AttachedResourceIDs: slices.Clone(p.AttachedResourceIDs),
		ContextData:         maps.Clone(p.ContextData),
	}
}

// greetingFromText turns the configured greeting text or file into a GreetingFunc
func (p Profile) greetingFromText() GreetingFunc {
	text := p.GreetingText
	if p.GreetingFile != "" {
		text = utils.LoadTextWithFallback(p.GreetingFile, text)
	}
	if text == "" {
		return nil
	}

	speaker := p.GreetingSpeaker.Normalize()
	return func() Message {
		return NewMessage(speaker, text)
	}
}

// profilesFile is the on-disk layout of a profiles YAML file
type profilesFile struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// LoadProfiles reads named conversation profiles from a YAML file
func LoadProfiles(path string) (map[string]Profile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles file %s: %w", path, err)
	}

	return ParseProfiles(content)
}

// ParseProfiles decodes named conversation profiles from YAML
func ParseProfiles(content []byte) (map[string]Profile, error) {
	var file profilesFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("failed to parse profiles: %w", err)
	}

	profiles := make(map[string]Profile, len(file.Profiles))
	for name, p := range file.Profiles {
		if p.Source == "" {
			p.Source = name
		}

		switch p.BusyPolicy {
		case "":
			p.BusyPolicy = BusyReject
		case BusyReject, BusySupersede:
		default:
			return nil, fmt.Errorf("profile %s: unsupported busy policy: %s", name, p.BusyPolicy)
		}

		p.Greeting = p.greetingFromText()
		profiles[name] = p
	}

	return profiles, nil
}
