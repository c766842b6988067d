package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentmem/agentmem/internal/witness"
)

func newCertificateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "certificate",
		Short: "Create, verify, and audit recall certificates",
	}
	cmd.AddCommand(newCertificateCreateCmd())
	cmd.AddCommand(newCertificateVerifyCmd())
	cmd.AddCommand(newCertificateAuditCmd())
	return cmd
}

// chunksRequest is the on-disk shape accepted by `certificate create`'s
// --chunks file: a JSON object with query_id, query_text, requirements, and
// a chunks array of {id, type, content, relevance}.
type chunksRequest struct {
	QueryID      string          `json:"query_id"`
	QueryText    string          `json:"query_text"`
	Requirements []string        `json:"requirements"`
	Chunks       []witness.Chunk `json:"chunks"`
}

func newCertificateCreateCmd() *cobra.Command {
	var chunksPath string
	f := &storeFlags{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Emit a certificate for a set of retrieved chunks and append it to the store's witness chain",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(chunksPath)
			if err != nil {
				return fmt.Errorf("failed to read --chunks file: %w", err)
			}
			var req chunksRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("failed to parse --chunks file: %w", err)
			}

			store, err := openStoreFromFlags(f)
			if err != nil {
				return err
			}
			defer store.Close()

			cert, err := store.CreateCertificate(witness.CreateCertificateRequest{
				QueryID:      req.QueryID,
				QueryText:    req.QueryText,
				Chunks:       req.Chunks,
				Requirements: req.Requirements,
			}, time.Now().UnixNano())
			if err != nil {
				return fmt.Errorf("failed to create certificate: %w", err)
			}
			if err := store.Save(); err != nil {
				return fmt.Errorf("failed to persist witness chain: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cert)
		},
	}

	cmd.Flags().StringVar(&chunksPath, "chunks", "", "path to a JSON file describing the query and retrieved chunks (required)")
	addStoreFlags(cmd.Flags(), f, "")
	return cmd
}

func newCertificateVerifyCmd() *cobra.Command {
	var certPath, contentPath string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a certificate against current chunk content",
		RunE: func(cmd *cobra.Command, _ []string) error {
			certData, err := os.ReadFile(certPath)
			if err != nil {
				return fmt.Errorf("failed to read --cert file: %w", err)
			}
			var cert witness.Certificate
			if err := json.Unmarshal(certData, &cert); err != nil {
				return fmt.Errorf("failed to parse --cert file: %w", err)
			}

			content := map[string]string{}
			if contentPath != "" {
				contentData, err := os.ReadFile(contentPath)
				if err != nil {
					return fmt.Errorf("failed to read --content file: %w", err)
				}
				if err := json.Unmarshal(contentData, &content); err != nil {
					return fmt.Errorf("failed to parse --content file: %w", err)
				}
			}

			result := witness.Verify(&cert, content)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
			if !result.Valid {
				return fmt.Errorf("certificate failed verification")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&certPath, "cert", "", "path to a JSON-encoded certificate (required)")
	cmd.Flags().StringVar(&contentPath, "content", "", "path to a JSON object mapping chunk id -> current content")
	return cmd
}

func newCertificateAuditCmd() *cobra.Command {
	f := &storeFlags{}

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Check the store's witness chain for structural integrity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStoreFromFlags(f)
			if err != nil {
				return err
			}
			defer store.Close()

			chain := store.WitnessChain()
			entries := chain.Entries()
			if err := witness.VerifyChainBytes(chain.Bytes()); err != nil {
				return fmt.Errorf("witness chain is broken: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "witness chain OK: %d entries\n", len(entries))
			return nil
		},
	}

	addStoreFlags(cmd.Flags(), f, "")
	return cmd
}
