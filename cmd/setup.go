package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scottbrough/bugbounty-framework/pkg/config"
	"github.com/scottbrough/bugbounty-framework/pkg/llm"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	RunE: func(cmd *cobra.Command, args []string) error {
		scanner := bufio.NewScanner(os.Stdin)
		fmt.Println("Welcome to the bugbounty Setup Wizard")
		fmt.Println("-------------------------------------")

		// 1. Select Provider
		fmt.Println("Step 1: Choose your AI Provider")
		fmt.Println("1. OpenAI")
		fmt.Println("2. Gemini (Google)")
		fmt.Print("Enter number or name > ")
		scanner.Scan()
		choice := strings.ToLower(strings.TrimSpace(scanner.Text()))

		var provider string
		switch choice {
		case "1", "openai":
			provider = "openai"
		case "2", "gemini":
			provider = "gemini"
		default:
			return fmt.Errorf("invalid choice: %s", choice)
		}

		// 2. Enter API Key
		fmt.Printf("\nStep 2: Enter API Key for %s\n", provider)
		fmt.Print("> ")
		scanner.Scan()
		apiKey := strings.TrimSpace(scanner.Text())
		if apiKey == "" {
			return fmt.Errorf("API key cannot be empty")
		}

		// 3. Fetch Models
		fmt.Println("\nStep 3: Validating key and fetching available models...")
		ctx := cmd.Context()

		tempProvider, err := llm.New(ctx, provider, apiKey, "", config.DefaultTimeout)
		if err != nil {
			return err
		}
		defer tempProvider.Close()

		models, err := tempProvider.ListModels(ctx)
		var selectedModel string
		if err != nil {
			fmt.Printf("Warning: Could not fetch models from API: %v\n", err)
			fmt.Println("Please enter model name manually (e.g., 'gpt-4o', 'gemini-1.5-pro'):")
			fmt.Print("> ")
			scanner.Scan()
			selectedModel = strings.TrimSpace(scanner.Text())
		} else {
			fmt.Printf("Successfully retrieved %d models.\n", len(models))
			for i, m := range models {
				fmt.Printf("%d. %s\n", i+1, m)
			}
			fmt.Print("Select a model by number > ")
			scanner.Scan()
			idx, convErr := strconv.Atoi(strings.TrimSpace(scanner.Text()))
			if convErr != nil || idx < 1 || idx > len(models) {
				return fmt.Errorf("invalid model selection")
			}
			selectedModel = models[idx-1]
		}
		if selectedModel == "" {
			return fmt.Errorf("no model selected")
		}

		// 4. Save
		cfg, err := config.Load(configFlag)
		if err != nil {
			return err
		}
		cfg.SelectedProvider = provider
		cfg.SelectedModel = selectedModel
		cfg.SetAPIKey(provider, apiKey)
		if err := config.Save(cfg); err != nil {
			return err
		}

		fmt.Printf("\nConfiguration saved: Provider=%s, Model=%s\n", provider, selectedModel)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
