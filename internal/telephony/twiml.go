// Package telephony renders the voice markup returned to the telephony
// provider. It is the only place that knows about TwiML.
package telephony

import (
	"github.com/twilio/twilio-go/twiml"
)

// Config holds the voice rendering settings shared by all responses.
type Config struct {
	Voice          string
	Language       string
	GatherEndpoint string
}

type Renderer struct {
	cfg Config
}

func NewRenderer(cfg Config) *Renderer {
	return &Renderer{cfg: cfg}
}

// Gather says message and keeps listening for caller speech; the
// transcription is posted back to the gather endpoint.
func (r *Renderer) Gather(message string) (string, error) {
	return twiml.Voice([]twiml.Element{
		&twiml.VoiceGather{
			Action:          r.cfg.GatherEndpoint,
			Language:        r.cfg.Language,
			Input:           "speech",
			Enhanced:        "true",
			SpeechTimeout:   "auto",
			ProfanityFilter: "false",
			SpeechModel:     "experimental_conversations",
			InnerElements: []twiml.Element{
				&twiml.VoiceSay{
					Message:  message,
					Voice:    r.cfg.Voice,
					Language: r.cfg.Language,
				},
			},
		},
	})
}

// Hangup says message and closes the call, no further listening.
func (r *Renderer) Hangup(message string) (string, error) {
	return twiml.Voice([]twiml.Element{
		&twiml.VoiceSay{
			Message:  message,
			Voice:    r.cfg.Voice,
			Language: r.cfg.Language,
		},
		&twiml.VoiceHangup{},
	})
}
