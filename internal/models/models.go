package models

// OCRBoxItem is one recognized text line with its pixel-space bounding box.
// The origin is the top-left corner of the image, y increases downward.
type OCRBoxItem struct {
	Text string  `json:"text"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	W    float64 `json:"w"`
	H    float64 `json:"h"`
}

// OCRResult is the outcome of one recognition pass over a single image.
type OCRResult struct {
	Text        string       `json:"text"`
	ImageWidth  uint32       `json:"image_width"`
	ImageHeight uint32       `json:"image_height"`
	Boxes       []OCRBoxItem `json:"boxes"`
}

// UploadResponse is the JSON body returned by POST /upload.
type UploadResponse struct {
	Success     bool         `json:"success"`
	Message     string       `json:"message"`
	OCRResult   string       `json:"ocr_result"`
	ImageWidth  uint32       `json:"image_width"`
	ImageHeight uint32       `json:"image_height"`
	OCRBoxes    []OCRBoxItem `json:"ocr_boxes"`
}

// Config represents the service configuration
type Config struct {
	// Server config
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	// HTTP Basic Auth credential ("user:password", empty disables auth)
	Auth string `yaml:"auth"`

	// OCR config
	OCR OCRConfig `yaml:"ocr"`
}

// OCRConfig represents OCR engine configuration
type OCRConfig struct {
	Engine    string   `yaml:"engine"`    // "tesseract", "gemini" or "openai"
	Languages []string `yaml:"languages"` // language hints (default: ["eng"])

	Gemini GeminiConfig `yaml:"gemini"`
	OpenAI OpenAIConfig `yaml:"openai"`
}

// GeminiConfig for Google Gemini vision OCR
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"` // Default: "gemini-1.5-flash"
}

// OpenAIConfig for OpenAI/Azure OpenAI vision OCR
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"` // For custom endpoints
	Model   string `yaml:"model"`              // Default: "gpt-4o-mini"
}
