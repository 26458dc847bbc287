package cli

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/ryanuber/columnize"
	"github.com/spf13/cobra"

	"github.com/mark3labs/postai/internal/search"
	"github.com/mark3labs/postai/internal/spec"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <source>",
		Short: "List the endpoints of a Swagger/OpenAPI document",
		Long:  "Load a Swagger/OpenAPI document from an http(s) URL or a local file and list its endpoints.",
		Example: `  postai inspect https://petstore.swagger.io/v2/swagger.json
  postai inspect ./openapi.yaml --tag pet --method GET --search status
  postai inspect ./openapi.yaml --exclude-tag admin --path '^/pets'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			tags, err := flags.GetStringSlice("tag")
			if err != nil {
				return err
			}
			excluded, err := flags.GetStringSlice("exclude-tag")
			if err != nil {
				return err
			}
			methodNames, err := flags.GetStringSlice("method")
			if err != nil {
				return err
			}
			paths, err := flags.GetStringSlice("path")
			if err != nil {
				return err
			}
			query, err := flags.GetString("search")
			if err != nil {
				return err
			}
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}

			var methods []spec.HttpMethod
			for _, name := range methodNames {
				m, ok := spec.ParseMethod(name)
				if !ok {
					return newUsageError(fmt.Sprintf("inspect: unknown --method %q", name))
				}
				methods = append(methods, m)
			}
			for _, p := range paths {
				if _, err := regexp.Compile(p); err != nil {
					return newUsageError(fmt.Sprintf("inspect: invalid --path %q: %v", p, err))
				}
			}
			opts := loaderOptions(cfg)
			if len(tags) > 0 || len(excluded) > 0 || len(methods) > 0 || len(paths) > 0 {
				opts = append(opts, spec.WithBuild(
					spec.WithIncludeTags(tags),
					spec.WithExcludeTags(excluded),
					spec.WithMethods(methods),
					spec.WithPathPatterns(paths),
				))
			}
			doc, err := spec.Load(cmd.Context(), args[0], opts...)
			if err != nil {
				if spec.IsCode(err, spec.InputError) {
					return newUsageError(fmt.Sprintf("inspect: %v", err))
				}
				return fmt.Errorf("inspect: %w", err)
			}

			endpoints := doc.Endpoints
			if q := strings.TrimSpace(query); q != "" {
				endpoints = search.Match(doc, q, search.AllFields)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (v%s, %s)\n", doc.Title, doc.Version, doc.SpecVersion)
			if doc.BaseURL != "" {
				fmt.Fprintf(out, "Base URL: %s\n", doc.BaseURL)
			}
			fmt.Fprintln(out)
			if len(endpoints) > 0 {
				fmt.Fprintln(out, endpointListing(endpoints))
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "%s of %s endpoints\n", humanize.Comma(int64(len(endpoints))), humanize.Comma(int64(len(doc.Endpoints))))
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringSlice("tag", nil, "Only include operations with these tags")
	flags.StringSlice("exclude-tag", nil, "Leave out operations with these tags")
	flags.StringSlice("method", nil, "Only include these HTTP methods")
	flags.StringSlice("path", nil, "Only include paths matching these regular expressions")
	flags.String("search", "", "Only list endpoints matching this text")
	return cmd
}

func endpointListing(eps []spec.Endpoint) string {
	rows := []string{"METHOD | PATH | SUMMARY | OPERATION ID"}
	for _, ep := range eps {
		summary := ep.Summary
		if summary == spec.NoDescription {
			summary = ""
		}
		rows = append(rows, fmt.Sprintf("%s | %s | %s | %s",
			ep.Method, ep.Path, strings.ReplaceAll(summary, "|", "/"), ep.OperationID))
	}
	return columnize.SimpleFormat(rows)
}
