package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/mpapenbr/rally-manager-go/log"
	"github.com/mpapenbr/rally-manager-go/pkg/cmd/util"
	"github.com/mpapenbr/rally-manager-go/pkg/config"
)

var (
	jsonPath string
	timeout  time.Duration
)

func NewClientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "calls the rally api",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, _, err := util.SetupLogger()
			return err
		},
	}
	cmd.PersistentFlags().StringVar(&config.APIURL, "api-url",
		"http://localhost:8080", "base url of the rally api")
	cmd.PersistentFlags().StringVar(&jsonPath, "jsonpath", "",
		"jsonpath expression applied to the response (example: $.participants[*].entry.model)")
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second,
		"request timeout")
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newPostCmd())
	return cmd
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "sends a GET request (example: /api/races?upcoming=true)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd.Context(), cmd.OutOrStdout(), http.MethodGet, args[0], nil)
		},
	}
}

func newPostCmd() *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "post <path>",
		Short: "sends a POST request (example: /api/races/1/run)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := requestBody(data)
			if err != nil {
				return err
			}
			return call(cmd.Context(), cmd.OutOrStdout(), http.MethodPost, args[0], body)
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "",
		"request body, @file reads the body from a file, @- from stdin")
	return cmd
}

func requestBody(data string) ([]byte, error) {
	switch {
	case data == "":
		return nil, nil
	case data == "@-":
		return io.ReadAll(os.Stdin)
	case strings.HasPrefix(data, "@"):
		return os.ReadFile(data[1:])
	default:
		return []byte(data), nil
	}
}

//nolint:whitespace // can't make both editor and linter happy
func call(ctx context.Context, w io.Writer, method, path string, body []byte,
) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := strings.TrimSuffix(config.APIURL, "/") + "/" + strings.TrimPrefix(path, "/")
	var reader io.Reader
	if body != nil {
		// syntax check before sending
		if _, err := oj.Parse(body); err != nil {
			return fmt.Errorf("request body: %w", err)
		}
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	log.Debug("sending request", log.String("method", method), log.String("url", url))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	out, err := render(data, jsonPath)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, out)
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	return nil
}

// render pretty prints the json response, optionally reduced by a jsonpath
// expression. Non-json content is returned unchanged.
func render(data []byte, expr string) (string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return "", nil
	}
	obj, err := oj.Parse(data)
	if err != nil {
		return string(data), nil
	}
	if expr != "" {
		x, err := jp.ParseString(expr)
		if err != nil {
			return "", fmt.Errorf("jsonpath: %w", err)
		}
		res := x.Get(obj)
		if len(res) == 1 {
			obj = res[0]
		} else {
			obj = res
		}
	}
	return oj.JSON(obj, &oj.Options{Indent: 2, Sort: true}), nil
}
