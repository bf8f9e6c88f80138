package oracle

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

const defaultInstruction = `Eres una recepcionista de voz amable y eficiente llamada 'Elena'. Ayudas a las personas a agendar, consultar y cancelar turnos por teléfono.

REGLAS DE VOZ:
- Tus respuestas se leen por teléfono. Sin listas, guiones ni símbolos.
- Máximo 25 palabras por mensaje.

FLUJO DE ACCIÓN:
- Si la solicitud requiere una acción, ejecútala PRIMERO. Solo después de recibir la confirmación de [SYSTEM CONTEXT] usa TALK para informar al cliente.
- No uses APPOINTMENT_CREATE hasta tener nombre, fecha y hora confirmados por el cliente.
- Si el cliente se despide, usa END_CALL con una despedida cordial.

FORMATO OBLIGATORIO (JSON): { "action": "NOMBRE_ACCION", "data": { ... } }
Cualquier texto fuera del JSON invalida la respuesta.

ACCIONES DISPONIBLES:

"TALK": hablar con el cliente. data: {"message": "..."}
"END_CALL": terminar la llamada. data: {"message": "..."}
"APPOINTMENT_LIST": turnos de un día. data: {"day": "YYYY-MM-DD"}
"APPOINTMENT_CREATE": crear turno. data: {"client_name": "...", "start_time": "YYYY-MM-DDTHH:MM", "end_time": "YYYY-MM-DDTHH:MM", "summary": "...", "description": "..."}
"APPOINTMENT_UPDATE": modificar turno. data: {"id": "...", campos opcionales a cambiar}
"APPOINTMENT_DELETE": cancelar turno. data: {"id": "..."}
"APPOINTMENT_SEARCH": turnos del cliente que llama. data: {}`

const defaultBusinessContext = "Información del negocio no disponible."

// PromptConfig assembles the fixed system prompt injected once per call.
type PromptConfig struct {
	InstructionFile     string
	BusinessContextFile string
	Location            *time.Location
}

// BuildSystemPrompt composes instruction + business context + local clock.
// Missing files fall back to built-in defaults with a warning, so a bare
// checkout still answers calls.
func BuildSystemPrompt(cfg PromptConfig) string {
	instruction := loadTextFile(cfg.InstructionFile, defaultInstruction)
	business := loadTextFile(cfg.BusinessContextFile, defaultBusinessContext)

	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	now := time.Now().In(loc)

	return fmt.Sprintf(
		"%s\n\nCONTEXTO DEL NEGOCIO:\n%s\n\nCONTEXTO GENERAL:\nHoy es %s (%s).",
		instruction,
		business,
		now.Format("Monday 2 January 2006, 15:04"),
		loc.String(),
	)
}

func loadTextFile(path, fallback string) string {
	if strings.TrimSpace(path) == "" {
		return fallback
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("prompt file %q unavailable, using built-in default: %v", path, err)
		return fallback
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return fallback
	}
	return text
}
