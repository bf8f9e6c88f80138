package httpapi

import (
	"log"
	"net/http"

	"github.com/elena-voice/elena/internal/dispatch"
)

const (
	apologyLine = "Lo siento, tuvimos un error interno. Por favor intenta llamar de nuevo más tarde."
	silenceLine = "Perdón, no te escuché. ¿Podrías repetirme?"

	// Static fallback document used only when TwiML rendering itself fails.
	// The caller must never get an empty 200 back.
	fallbackTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response><Say>` + apologyLine + `</Say><Hangup/></Response>`
)

// respondReply renders a dispatch reply: keep listening unless the
// conversation is over.
func (s *Server) respondReply(w http.ResponseWriter, reply dispatch.Reply) {
	if reply.EndCall {
		s.respondHangup(w, reply.Text)
		return
	}
	s.respondGather(w, reply.Text)
}

func (s *Server) respondGather(w http.ResponseWriter, message string) {
	doc, err := s.renderer.Gather(message)
	s.writeTwiML(w, doc, err)
}

func (s *Server) respondHangup(w http.ResponseWriter, message string) {
	doc, err := s.renderer.Hangup(message)
	s.writeTwiML(w, doc, err)
}

func (s *Server) writeTwiML(w http.ResponseWriter, doc string, err error) {
	if err != nil {
		log.Printf("twiml render failed: %v", err)
		doc = fallbackTwiML
	}
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}
