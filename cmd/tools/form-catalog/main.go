// cmd/tools/form-catalog/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"dynamic-forms/internal/forms"
	"dynamic-forms/pkg/catalog"

	"github.com/spf13/afero"
)

const defaultCatalogPath = "configs/form-catalog.json"

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	addPath := addCmd.String("path", defaultCatalogPath, "Path to catalog file")
	key := addCmd.String("key", "", "Catalog key (e.g., patient-intake)")
	file := addCmd.String("file", "", "JSON form definition (name, category, fields)")

	listPath := listCmd.String("path", defaultCatalogPath, "Path to catalog file")
	category := listCmd.String("category", "", "Only list forms in this category")

	validatePath := validateCmd.String("path", defaultCatalogPath, "Path to catalog file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	fs := afero.NewOsFs()

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *key == "" || *file == "" {
			fmt.Println("Error: key and file are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		if err := addForm(fs, *addPath, *key, *file); err != nil {
			fmt.Printf("Error adding form: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added form: %s\n", *key)

	case "list":
		listCmd.Parse(os.Args[2:])
		cat, err := catalog.LoadFs(fs, *listPath)
		if err != nil {
			fmt.Printf("Error loading catalog: %v\n", err)
			os.Exit(1)
		}
		listForms(cat, *category)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		cat, err := catalog.LoadFs(fs, *validatePath)
		if err == nil {
			err = cat.Validate()
		}
		if err != nil {
			fmt.Printf("Catalog validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Catalog validation passed (%d forms).\n", len(cat.Forms))

	case "help":
		fallthrough
	default:
		help()
	}
}

func addForm(fs afero.Fs, path, key, file string) error {
	body, err := afero.ReadFile(fs, file)
	if err != nil {
		return err
	}
	def, err := forms.ValidateDefinitionPayload(body)
	if err != nil {
		return err
	}

	cat, err := catalog.LoadFs(fs, path)
	if err != nil {
		if !catalog.IsNotExist(err) {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
		cat = catalog.Empty()
	}

	if !cat.HasCategory(def.Category) {
		fmt.Printf("Warning: category %q is not in the catalog list\n", def.Category)
	}

	err = cat.Add(catalog.Entry{
		Key:         key,
		Name:        def.Name,
		Description: def.Description,
		Category:    def.Category,
		Fields:      def.Fields,
	})
	if err != nil {
		return err
	}
	return catalog.SaveFs(fs, path, cat)
}

func listForms(cat *catalog.Catalog, category string) {
	fmt.Printf("Catalog %s (updated %s)\n", cat.Version, cat.LastUpdated)
	fmt.Printf("Categories: %s\n\n", strings.Join(cat.Categories, ", "))
	for _, e := range cat.Forms {
		if category != "" && e.Category != category {
			continue
		}
		fmt.Printf("%-24s %-32s %-14s %d fields\n", e.Key, e.Name, e.Category, len(e.Fields))
	}
}

func help() {
	fmt.Println("Usage: form-catalog <command> [arguments]")
	fmt.Println("Commands:")
	fmt.Println("  add       Add a form definition to the catalog")
	fmt.Println("  list      List catalog forms")
	fmt.Println("  validate  Validate the catalog file")
	fmt.Println("  help      Show this help message")
}
