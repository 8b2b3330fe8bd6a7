package cmd

import (
	"socket-client/application/http"
	"socket-client/application/session"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	methodFlag  string
	dataFlag    string
	headerFlags []string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Run a single request and exit",
	Long: `Run exactly one exchange against url without prompting.

Examples:
  socketclient fetch https://example.org/
  socketclient fetch http://localhost:8080/todos -X POST -d '{"title":"x"}'
  socketclient fetch https://api.example.com/me -H "Authorization: Bearer t"`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVarP(&methodFlag, "method", "X", http.MethodGet, "request method")
	fetchCmd.Flags().StringVarP(&dataFlag, "data", "d", "", "request body, JSON for POST, PUT and PATCH")
	fetchCmd.Flags().StringArrayVarP(&headerFlags, "header", "H", nil, `extra header as "Name: value", repeatable`)
}

func runFetch(cmd *cobra.Command, args []string) error {
	headers, err := http.ParseFields(headerFlags)
	if err != nil {
		return errors.Wrap(err, "parsing --header")
	}

	controller, err := setup(cmd)
	if err != nil {
		return err
	}

	plan := session.Plan{
		URL:     args[0],
		Method:  methodFlag,
		Headers: headers,
	}
	if dataFlag != "" {
		plan.Body = []byte(dataFlag)
	}

	if err := controller.RunOnce(cmd.Context(), plan); err != nil {
		return errors.Wrap(errReported, err.Error())
	}
	return nil
}
