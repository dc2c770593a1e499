package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/punkyapp/diabetes-cockpit/internal/config"
)

func main() {
	fmt.Println("🔍 Prüfe Konfiguration...")

	if err := godotenv.Load(); err != nil {
		fmt.Printf("⚠️  Keine .env Datei gefunden: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ Konfiguration ungültig:\n%v\n", err)
		os.Exit(1)
	}

	fmt.Println("✅ Konfiguration gültig!")
	fmt.Printf("📋 Details:\n")
	fmt.Printf("  - Nightscout URL: %s\n", cfg.Nightscout.URL)
	fmt.Printf("  - Nightscout Secret: %s\n", maskToken(cfg.Nightscout.APISecret))
	fmt.Printf("  - Nightscout Token: %s\n", maskToken(cfg.Nightscout.Token))
	fmt.Printf("  - Advice Provider: %s\n", cfg.Advice.Provider)
	fmt.Printf("  - Gemini API Key: %s\n", maskToken(cfg.Advice.GeminiAPIKey))
	fmt.Printf("  - OpenAI API Key: %s\n", maskToken(cfg.Advice.OpenAIAPIKey))
	fmt.Printf("  - PIN Hash: %s\n", maskToken(cfg.PINHash))
	fmt.Printf("  - Telegram Token: %s\n", maskToken(cfg.Telegram.Token))
	fmt.Printf("  - Archive aktiviert: %v\n", cfg.Archive.Enabled)
	fmt.Printf("  - DB Host: %s\n", cfg.Archive.Host)
	fmt.Printf("  - DB Name: %s\n", cfg.Archive.DBName)
	fmt.Printf("  - Redis aktiviert: %v\n", cfg.Redis.Enabled)
	fmt.Printf("  - Alarm-Bänder: <%g / <%g / >%g / >%g mg/dl\n",
		cfg.Alerts.UrgentLow, cfg.Alerts.Low, cfg.Alerts.High, cfg.Alerts.UrgentHigh)
	fmt.Printf("  - Log Level: %v\n", cfg.Logger.Level)
	fmt.Printf("  - Log Output: %s\n", cfg.Logger.OutputPath)
	fmt.Printf("  - Log Format: %s\n", cfg.Logger.Format)
}

func maskToken(token string) string {
	if token == "" {
		return "<nicht gesetzt>"
	}
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
