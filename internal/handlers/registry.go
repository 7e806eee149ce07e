package handlers

// AppHandlers holds every HTTP handler of the application.
type AppHandlers struct {
	AuthHandler          *AuthHandler
	UserHandler          *UserHandler
	PlanHandler          *PlanHandler
	TranscriptionHandler *TranscriptionHandler
	AgentHandler         *AgentHandler
	AssistantHandler     *AssistantHandler
}
