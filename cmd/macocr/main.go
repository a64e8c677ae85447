package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/riddleling/macocr/api"
	"github.com/riddleling/macocr/internal/engine"
	"github.com/riddleling/macocr/internal/imaging"
	"github.com/riddleling/macocr/internal/models"
	"github.com/riddleling/macocr/internal/ocr"
	"github.com/riddleling/macocr/internal/uploads"
)

var (
	ocrMode    bool
	serverMode bool
	authFlag   string
	portFlag   int
	configPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "macocr [files...]",
		Short:        "OCR tool extracting text and per-line bounding boxes from images",
		Version:      api.Version,
		Args:         cobra.ArbitraryArgs,
		RunE:         run,
		SilenceUsage: true,
	}

	rootCmd.Flags().BoolVarP(&ocrMode, "ocr", "o", false, "OCR and export text files")
	rootCmd.Flags().BoolVarP(&serverMode, "server", "s", false, "Run HTTP server")
	rootCmd.Flags().StringVarP(&authFlag, "auth", "a", "", "HTTP Basic Auth (username:password)")
	rootCmd.Flags().IntVarP(&portFlag, "port", "p", 8000, "HTTP port number")
	rootCmd.Flags().StringVar(&configPath, "config", "config.yaml", "Path to config file")
	rootCmd.MarkFlagsMutuallyExclusive("ocr", "server")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	config := loadConfig(configPath)

	if cmd.Flags().Changed("port") || config.Port == 0 {
		config.Port = portFlag
	}
	if cmd.Flags().Changed("auth") {
		config.Auth = authFlag
	}

	if serverMode {
		return runServer(config)
	}
	return runBatch(cmd.Context(), config, args)
}

// runBatch OCRs each file and either prints the transcript or, in
// export mode, writes it to a .txt file beside the input. Non-image
// inputs are silently skipped in both modes.
func runBatch(ctx context.Context, config *models.Config, files []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	eng, err := engine.New(config.OCR)
	if err != nil {
		return err
	}
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	assembler := ocr.NewAssembler(eng, logger)

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil || !imaging.IsImage(data) {
			continue
		}
		result, err := assembler.AssembleFile(ctx, file)
		if err != nil {
			continue
		}

		if !ocrMode {
			fmt.Print(result.Text)
			continue
		}

		stem := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		textFile := filepath.Join(filepath.Dir(file), stem+".txt")
		if err := os.WriteFile(textFile, []byte(result.Text), 0o644); err == nil {
			fmt.Printf("%s --> %s\n", file, textFile)
		}
	}
	return nil
}

func runServer(config *models.Config) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	store, err := uploads.NewStore(uploads.DefaultDir())
	if err != nil {
		logger.Fatalf("Failed to create upload dir: %v", err)
	}

	eng, err := engine.New(config.OCR)
	if err != nil {
		logger.Fatalf("Failed to create OCR engine: %v", err)
	}

	assembler := ocr.NewAssembler(eng, logger)
	handler := api.NewHandler(assembler, store, eng.Name(), logger)

	var root http.Handler = handler.SetupRoutes()

	value := color.New(color.FgBlue, color.Bold)

	if config.Auth != "" {
		cred, err := api.ParseCredential(config.Auth)
		if err != nil {
			logger.Fatalf("Invalid auth format: %v", err)
		}
		fmt.Print("      Auth: ")
		value.Println(config.Auth)
		root = api.BasicAuth(cred, root)
	}
	root = api.RequestLogger(logger, root)

	host := config.Host
	if host == "" {
		host = "0.0.0.0"
	}
	addr := fmt.Sprintf("%s:%d", host, config.Port)

	fmt.Print("   Address: ")
	value.Printf("http://%s\n", addr)
	fmt.Print("Upload dir: ")
	value.Println(store.Dir())
	fmt.Println()

	if err := http.ListenAndServe(addr, root); err != nil {
		logger.Fatalf("Server failed: %v", err)
	}
	return nil
}

// loadConfig reads the optional yaml config file and applies environment
// overrides. A missing file yields defaults; flags are applied on top by
// the caller.
func loadConfig(path string) *models.Config {
	var config models.Config

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &config); err != nil {
			logrus.Fatalf("Failed to parse config %s: %v", path, err)
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		fmt.Sscanf(port, "%d", &config.Port)
	}
	if host := os.Getenv("HOST"); host != "" {
		config.Host = host
	}
	if auth := os.Getenv("MACOCR_AUTH"); auth != "" {
		config.Auth = auth
	}
	if eng := os.Getenv("OCR_ENGINE"); eng != "" {
		config.OCR.Engine = eng
	}
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.OCR.Gemini.APIKey = apiKey
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.OCR.OpenAI.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.OCR.OpenAI.BaseURL = baseURL
	}

	return &config
}
