package gateway

import "github.com/iliyamo/edubot/internal/model"

// SystemPrompt is sent as the system instruction of every request.
const SystemPrompt = `You are EduBot, an intelligent educational assistant designed to help students and faculty with academic queries.
Your role is to:

1. Provide clear, accurate, and educational responses
2. Break down complex concepts into understandable parts
3. Encourage learning and critical thinking
4. Provide examples and practical applications when relevant
5. Be supportive and encouraging
6. If you're unsure about something, acknowledge it and suggest reliable sources
7. For image-based queries, analyze the content and provide educational insights

Always maintain a helpful, professional, and educational tone. Focus on being informative while keeping responses concise and engaging.`

// DefaultImagePrompt is used when an image arrives without a question.
const DefaultImagePrompt = "Please analyze this image and provide educational insights about what you see. " +
	"Explain any concepts, formulas, diagrams, or educational content visible in the image."

// ImageAnalysisRequest is stored as the message content of image queries
// that had no text.
const ImageAnalysisRequest = "Image analysis request"

func TextPrompt(query string) string {
	return "Student/Faculty Query: " + query
}

func ImagePrompt(query string) string {
	if query == "" {
		return DefaultImagePrompt
	}
	return "Please analyze this image and respond to the following query: " + query
}

var (
	studentSuggestions = []string{
		"Explain this mathematical concept",
		"Help me understand this diagram",
		"What is the solution to this problem?",
		"Can you break down this complex topic?",
		"Provide examples for this concept",
	}
	facultySuggestions = []string{
		"Analyze this educational content",
		"Suggest teaching methods for this topic",
		"Create assessment questions",
		"Explain pedagogical approaches",
		"Review this academic material",
	}
)

// Suggestions returns starter prompts for the role. The slice is a copy.
func Suggestions(role model.Role) []string {
	src := studentSuggestions
	if role == model.RoleFaculty {
		src = facultySuggestions
	}
	return append([]string(nil), src...)
}
