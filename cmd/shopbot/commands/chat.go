package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/liliang-cn/shopbot/internal/domain"
	"github.com/liliang-cn/shopbot/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var chatMessage string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant in the terminal",
	Long:  "Chat with the assistant from the terminal. Without --message an interactive session starts; type /new to reset it and /exit to quit.",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "send one message and exit")
	rootCmd.AddCommand(chatCmd)
}

var (
	promptColor  = color.New(color.FgCyan, color.Bold)
	replyColor   = color.New(color.FgWhite)
	productColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	dimColor     = color.New(color.Faint)
)

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, "warn")
	if err != nil {
		return err
	}
	defer a.Close()

	chatService := a.chatService()

	if chatMessage != "" {
		_, err := sendTurn(ctx, chatService, a.logger, chatMessage, "")
		return err
	}

	dimColor.Println("Type /new to start over, /exit to quit.")

	var sessionID string
	scanner := bufio.NewScanner(os.Stdin)
	for {
		promptColor.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/new":
			if sessionID != "" {
				chatService.DeleteSession(sessionID)
			}
			sessionID = ""
			dimColor.Println("Session reset.")
			continue
		}

		if id, err := sendTurn(ctx, chatService, a.logger, line, sessionID); err == nil {
			sessionID = id
		}
	}
}

// sendTurn runs one message through the pipeline and prints the reply. The
// returned id continues the conversation.
func sendTurn(ctx context.Context, chatService *service.ChatService, logger *zap.Logger, message, sessionID string) (string, error) {
	resp, err := chatService.ProcessChatMessage(ctx, message, sessionID)
	if err != nil {
		logger.Debug("Turn failed", zap.Error(err))
		errorColor.Println(service.FailureText)
		return sessionID, err
	}

	replyColor.Println(resp.Response)
	printProducts(resp.Products)
	if verbose {
		dimColor.Printf("session=%s products_found=%d relevant=%t\n",
			resp.SessionID, resp.ProductsFound, resp.RelevanceCheck.IsRelevant)
	}
	return resp.SessionID, nil
}

func printProducts(products []domain.ProductCard) {
	for i, p := range products {
		line := fmt.Sprintf("%d. %s", i+1, p.Title)
		if p.Brand != "" {
			line += " (" + p.Brand + ")"
		}
		if p.Price != "" {
			line += " " + p.Price
		}
		productColor.Println(line)
		if p.Link != "" {
			dimColor.Println("   " + p.Link)
		}
	}
}
