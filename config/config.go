package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads a .env file into the process environment when one exists.
func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}
}

// GetPort returns the HTTP listen port. Defaults to "3001".
func GetPort() string {
	return String("PORT", "3001")
}

// GetGeminiModel returns the Gemini model to use from environment variable
// Defaults to "gemini-2.5-flash" if not set
func GetGeminiModel() string {
	return String("GEMINI_MODEL", "gemini-2.5-flash")
}

// GetGeminiTranscribeModel returns the model used for speech-to-text.
// Falls back to the dialogue model.
func GetGeminiTranscribeModel() string {
	return String("GEMINI_TRANSCRIBE_MODEL", GetGeminiModel())
}

// GetGeminiAPIKey returns the Gemini API key from environment variable
func GetGeminiAPIKey() string {
	return os.Getenv("GEMINI_API_KEY")
}

func GetLLMTemperature() float64 {
	return Float("LLM_TEMPERATURE", 0.8)
}

func GetLLMMaxTokens() int {
	return Int("LLM_MAX_TOKENS", 300)
}

// GetElevenLabsAPIKey returns the text-to-speech API key. Empty disables audio.
func GetElevenLabsAPIKey() string {
	return os.Getenv("ELEVENLABS_API_KEY")
}

func GetElevenLabsModel() string {
	return String("ELEVENLABS_MODEL", "eleven_turbo_v2_5")
}

// GetMongoDBURI returns the MongoDB connection URI from environment variable.
// Empty means the server runs in demo mode on the in-memory store.
func GetMongoDBURI() string {
	return os.Getenv("MONGODB_URI")
}

func GetMongoDatabase() string {
	return String("MONGODB_DATABASE", "frequency")
}

// GetAllowedOrigins returns the allowed CORS origins from environment variable
func GetAllowedOrigins() []string {
	raw := String("ALLOWED_ORIGINS", "http://localhost:5173")
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func GetLogMode() string {
	return String("LOG_MODE", "development")
}

// GetConnectGrace is how long a websocket may stay anonymous before it is
// bound to a freshly created user.
func GetConnectGrace() time.Duration {
	return Duration("CONNECT_GRACE", time.Second)
}
