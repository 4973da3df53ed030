// cmd/tools/registry-tool/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"search-workers/internal/models"
	"search-workers/internal/search/bias"
)

func main() {
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	addCmd := flag.NewFlagSet("add-binding", flag.ExitOnError)
	weightCmd := flag.NewFlagSet("set-weight", flag.ExitOnError)

	// Validate command flags
	validatePath := validateCmd.String("path", "configs/bias-registry.json", "Path to registry file")

	// List command flags
	listPath := listCmd.String("path", "configs/bias-registry.json", "Path to registry file")
	listType := listCmd.String("type", "", "Only show bindings for this entity type")

	// Add-binding command flags
	addPath := addCmd.String("path", "configs/bias-registry.json", "Path to registry file")
	addType := addCmd.String("type", "", "Entity type (e.g., FAULT_CODE)")
	addTable := addCmd.String("table", "", "Table name")
	addMatch := addCmd.String("match", "", "Comma-separated match columns")
	addDisplay := addCmd.String("display", "", "Comma-separated display columns")
	addRowID := addCmd.String("rowid", "", "Row id column (default: id)")
	addTenant := addCmd.String("tenant", "", "Tenant column (default: tenant_id)")
	addWeight := addCmd.Float64("weight", 0, "Bias weight (must be positive)")
	addTrigram := addCmd.Bool("trigram", false, "Table has a trigram index on the match columns")
	addVersion := addCmd.String("version", "", "New artifact version (default: keep current)")

	// Set-weight command flags
	weightPath := weightCmd.String("path", "configs/bias-registry.json", "Path to registry file")
	weightType := weightCmd.String("type", "", "Entity type of the binding")
	weightTable := weightCmd.String("table", "", "Table name of the binding")
	weightValue := weightCmd.Float64("weight", 0, "New bias weight (must be positive)")
	weightVersion := weightCmd.String("version", "", "New artifact version (default: keep current)")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err := validateRegistry(*validatePath); err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}

	case "list":
		listCmd.Parse(os.Args[2:])
		if err := listBindings(*listPath, *listType); err != nil {
			fmt.Printf("Error listing bindings: %v\n", err)
			os.Exit(1)
		}

	case "add-binding":
		addCmd.Parse(os.Args[2:])
		if *addType == "" || *addTable == "" || *addMatch == "" || *addDisplay == "" || *addWeight <= 0 {
			fmt.Println("Error: type, table, match, display, and a positive weight are required for add-binding.")
			addCmd.Usage()
			os.Exit(1)
		}
		binding := bias.TableBinding{
			EntityType:      models.EntityType(*addType),
			TableName:       *addTable,
			MatchColumns:    splitColumns(*addMatch),
			DisplayColumns:  splitColumns(*addDisplay),
			RowIDColumn:     *addRowID,
			TenantColumn:    *addTenant,
			BiasWeight:      *addWeight,
			SupportsTrigram: *addTrigram,
		}
		if err := addBinding(*addPath, binding, *addVersion); err != nil {
			fmt.Printf("Error adding binding: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added binding %s/%s\n", *addType, *addTable)

	case "set-weight":
		weightCmd.Parse(os.Args[2:])
		if *weightType == "" || *weightTable == "" || *weightValue <= 0 {
			fmt.Println("Error: type, table, and a positive weight are required for set-weight.")
			weightCmd.Usage()
			os.Exit(1)
		}
		if err := setWeight(*weightPath, *weightType, *weightTable, *weightValue, *weightVersion); err != nil {
			fmt.Printf("Error setting weight: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Set weight of %s/%s to %v\n", *weightType, *weightTable, *weightValue)

	case "help":
		fallthrough
	default:
		help()
	}
}

func validateRegistry(path string) error {
	reg, err := bias.Load(path)
	if err != nil {
		return err
	}

	fmt.Printf("Registry validation passed. Version %s, %d tables, %d entity types.\n",
		reg.Version(), reg.TableCount(), len(reg.EntityTypes()))
	return nil
}

func listBindings(path, entityType string) error {
	reg, err := bias.Load(path)
	if err != nil {
		return err
	}

	types := reg.EntityTypes()
	if entityType != "" {
		et := models.EntityType(entityType)
		if !et.Known() {
			return fmt.Errorf("unknown entity type %q", entityType)
		}
		types = []models.EntityType{et}
	}

	for _, et := range types {
		fmt.Printf("%s\n", et)
		for _, b := range reg.BindingsFor(et) {
			trigram := ""
			if b.SupportsTrigram {
				trigram = "  [trigram]"
			}
			fmt.Printf("  %-20s weight %-5v match(%s) display(%s)%s\n",
				b.TableName, b.BiasWeight,
				strings.Join(b.MatchColumns, ","),
				strings.Join(b.DisplayColumns, ","),
				trigram,
			)
		}
	}
	return nil
}

func addBinding(path string, binding bias.TableBinding, version string) error {
	artifact, err := bias.ReadArtifact(path)
	if err != nil {
		return err
	}

	for _, existing := range artifact.Bindings {
		if existing.EntityType == binding.EntityType && existing.TableName == binding.TableName {
			return fmt.Errorf("binding %s/%s already exists", binding.EntityType, binding.TableName)
		}
	}

	artifact.Bindings = append(artifact.Bindings, binding)
	return saveArtifact(artifact, path, version)
}

func setWeight(path, entityType, table string, weight float64, version string) error {
	artifact, err := bias.ReadArtifact(path)
	if err != nil {
		return err
	}

	found := false
	for i := range artifact.Bindings {
		b := &artifact.Bindings[i]
		if string(b.EntityType) == entityType && b.TableName == table {
			b.BiasWeight = weight
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("binding %s/%s not found", entityType, table)
	}

	return saveArtifact(artifact, path, version)
}

// saveArtifact re-validates before writing, so a bad edit can never reach
// the file workers load at startup.
func saveArtifact(artifact *bias.Artifact, path, version string) error {
	if version != "" {
		artifact.Version = version
	}
	artifact.LastUpdated = time.Now().UTC().Format(time.RFC3339)

	if _, err := artifact.Validate(); err != nil {
		return err
	}
	return artifact.Write(path)
}

func splitColumns(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func help() {
	fmt.Print(`
Usage: registry-tool <command> [flags]

Commands:
  validate     Validate the bias registry file exactly as startup does
  list         Show bindings per entity type, highest bias first
  add-binding  Add a table binding and re-validate the artifact
  set-weight   Change the bias weight of an existing binding
  help         Show this help message

Examples:
  registry-tool validate -path configs/bias-registry.json
  registry-tool list -type FAULT_CODE
  registry-tool add-binding -type SYMPTOM -table service_reports -match symptom -display symptom,reported_at -weight 1.5 -trigram
  registry-tool set-weight -type FAULT_CODE -table maintenance_logs -weight 2.0 -version 2026.09.1

Use 'registry-tool <command> -h' for more information about a command.

`)
}
