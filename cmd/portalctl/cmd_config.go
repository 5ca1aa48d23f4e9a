package main

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"portal-api/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration inspection commands",
}

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema of the service configuration",
	RunE:  runConfigSchema,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration values",
	Long:  `Display the configuration the server would start with. Secrets are masked.`,
	RunE:  runConfigShow,
}

func init() {
	configCmd.AddCommand(configSchemaCmd)
	configCmd.AddCommand(configShowCmd)

	configShowCmd.Flags().String("format", "yaml", "Output format: yaml, json")
}

// secretKeys are masked by config show.
var secretKeys = map[string]bool{
	"SESSION_SECRET":          true,
	"ADMIN_PASSWORD":          true,
	"SMTP_PASS":               true,
	"DB_POSTGRESQL_WRITE_DSN": true,
	"REDIS_URL":               true,
}

func runConfigSchema(cmd *cobra.Command, args []string) error {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		ExpandedStruct:            true,
	}
	schema := reflector.Reflect(&config.Config{})
	schema.Title = "Portal API Configuration"
	schema.Description = "Environment variables read by the portal server"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	return writeConfig(cmd.OutOrStdout(), cfg, format)
}

func writeConfig(w io.Writer, cfg *config.Config, format string) error {
	values := maskedValues(cfg)
	switch strings.ToLower(format) {
	case "json":
		data, err := json.MarshalIndent(values, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(values)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

// maskedValues flattens cfg into env-name keyed values.
func maskedValues(cfg *config.Config) map[string]any {
	out := make(map[string]any)
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		key := field.Tag.Get("env")
		if key == "" {
			continue
		}
		value := v.Field(i)
		if secretKeys[key] {
			if value.Kind() == reflect.String && value.Len() > 0 {
				out[key] = "********"
			} else {
				out[key] = ""
			}
			continue
		}
		switch typed := value.Interface().(type) {
		case fmt.Stringer:
			out[key] = typed.String()
		default:
			out[key] = typed
		}
	}
	return out
}
