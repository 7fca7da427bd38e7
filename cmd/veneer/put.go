package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/veneer/pkg/core"
)

var (
	putData string
	putFile string
)

var putCmd = &cobra.Command{
	Use:   "put [id]",
	Short: "Create or update a document",
	Long: `Write a JSON document read from --data, --file or stdin.
The id argument overrides the document's _id; without any id a new one is generated.
When no _rev is given, the current revision is looked up so the write replaces it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readDocument(cmd.InOrStdin())
		if err != nil {
			return err
		}
		if len(args) == 1 {
			doc[core.FieldID] = args[0]
		}

		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Database().Close()
		ctx := cmd.Context()

		var res core.WriteResult
		if doc.ID() == "" {
			res, err = svc.Post(ctx, doc)
		} else {
			if doc.Rev() == "" {
				if current, getErr := svc.GetDocument(ctx, doc.ID()); getErr == nil {
					doc[core.FieldRev] = current.Rev()
				} else if !errors.Is(getErr, core.ErrNotFound) {
					return getErr
				}
			}
			res, err = svc.SaveDocument(ctx, doc)
		}
		if err != nil {
			return fmt.Errorf("failed to save document: %w", err)
		}
		return writeJSON(cmd.OutOrStdout(), res, false)
	},
}

func readDocument(stdin io.Reader) (core.Document, error) {
	var data []byte
	var err error
	switch {
	case putData != "":
		data = []byte(putData)
	case putFile != "":
		data, err = os.ReadFile(putFile)
	default:
		data, err = io.ReadAll(stdin)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	var doc core.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("document must be a JSON object: %w", err)
	}
	if doc == nil {
		doc = core.Document{}
	}
	return doc, nil
}

func init() {
	rootCmd.AddCommand(putCmd)
	putCmd.Flags().StringVarP(&putData, "data", "d", "", "Document JSON")
	putCmd.Flags().StringVarP(&putFile, "file", "f", "", "Read the document JSON from a file")
}
