package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/sediba/edubot/internal/adapters/groq"
	"github.com/sediba/edubot/internal/adapters/memory"
	"github.com/sediba/edubot/internal/adapters/sms"
	"github.com/sediba/edubot/internal/config"
	"github.com/sediba/edubot/internal/content"
	"github.com/sediba/edubot/internal/domain"
	"github.com/sediba/edubot/internal/logging"
	"github.com/sediba/edubot/internal/quiz"
	"github.com/sediba/edubot/internal/session"
	"github.com/sediba/edubot/internal/ussd"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive the USSD dialog from the terminal",
	Long: `Runs the full dialog machine in-process with in-memory sessions and
prints the screens a phone would show. SMS deliveries are rendered
inline instead of being sent. With a Groq key in the environment,
quizzes are generated; otherwise the static banks serve.`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().String("phone", "+254700000000", "caller number presented to the service")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	phone, _ := cmd.Flags().GetString("phone")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// Screens are the output here; keep service logs out of the dialog.
	logger := logging.NewNop()

	catalog, err := content.Load()
	if err != nil {
		return fmt.Errorf("load content: %w", err)
	}

	quizOpts := []quiz.Option{
		quiz.WithTimeout(cfg.GenerationTimeout),
		quiz.WithDifficulty(cfg.QuizDifficulty),
		quiz.WithLogger(logger),
	}
	if cfg.GenerationEnabled && cfg.GroqAPIKey != "" {
		quizOpts = append(quizOpts, quiz.WithGenerator(groq.NewClient(cfg.GroqAPIKey,
			groq.WithModel(cfg.GroqModel),
			groq.WithMaxTokens(cfg.GroqMaxTokens),
			groq.WithLogger(logger),
		)))
	}

	machine := ussd.NewMachine(
		session.NewManager(memory.NewStore(memory.WithTTL(cfg.SessionTTL))),
		quiz.NewOrchestrator(catalog, quizOpts...),
		catalog,
		ussd.WithCounts(cfg.AllowedCounts, cfg.DefaultCount),
		ussd.WithLogger(logger),
	)

	out := termenv.NewOutput(os.Stdout)
	fmt.Println(out.String("EduBot USSD Simulator").Bold())
	fmt.Println(out.String(fmt.Sprintf("Dialing %s as %s. Type choices like a phone; 'reset' hangs up, 'quit' leaves.", cfg.ServiceCode, phone)).Faint())

	reader := bufio.NewReader(os.Stdin)
	dials := 0
	sessionID := simSessionID(&dials)
	path := ""

	for {
		resp, err := machine.Handle(cmd.Context(), sessionID, phone, path)
		if err != nil {
			return fmt.Errorf("handle %q: %w", path, err)
		}

		printScreen(out, resp)
		for _, d := range resp.Deliveries {
			printSMS(out, d)
		}

		if !resp.Continue {
			fmt.Println(out.String("(session ended, enter redials, 'quit' leaves)").Faint())
			line, err := reader.ReadString('\n')
			if err != nil {
				return nil
			}
			if isQuit(strings.TrimSpace(line)) {
				return nil
			}
			sessionID = simSessionID(&dials)
			path = ""
			continue
		}

		fmt.Print(out.String("> ").Bold())
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil
		}
		input := strings.TrimSpace(line)
		if isQuit(input) {
			return nil
		}
		if input == "reset" {
			sessionID = simSessionID(&dials)
			path = ""
			continue
		}

		if path == "" {
			path = input
		} else {
			path = path + "*" + input
		}
	}
}

func simSessionID(dials *int) string {
	*dials++
	return fmt.Sprintf("sim-%d", *dials)
}

func isQuit(input string) bool {
	return input == "quit" || input == "exit"
}

func printScreen(out *termenv.Output, resp *ussd.Response) {
	frame := "END"
	color := out.Color("11")
	if resp.Continue {
		frame = "CON"
		color = out.Color("10")
	}
	fmt.Println()
	fmt.Println(out.String("[" + frame + "]").Faint())
	fmt.Println(out.String(resp.Text).Foreground(color))
	fmt.Println()
}

func printSMS(out *termenv.Output, req domain.DeliveryRequest) {
	body, err := sms.Format(req)
	if err != nil {
		body = fmt.Sprintf("unrenderable %s delivery: %v", req.Kind, err)
	}
	fmt.Println(out.String(fmt.Sprintf("-- SMS to %s (%s) --", req.To, req.Kind)).Faint())
	fmt.Println(out.String(body).Foreground(out.Color("12")))
	fmt.Println()
}
