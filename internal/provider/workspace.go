package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/factgate/internal/errors"
	"github.com/ppiankov/factgate/internal/model"
)

// Workspace layout:
//
//	<root>/claims/<claim_id>/extractions/<run_id>/<document_id>.json
//	<root>/claims/<claim_id>/reconciliation/report.json
const (
	claimsDir         = "claims"
	extractionsDir    = "extractions"
	ReconciliationDir = "reconciliation"
)

// ClaimDir returns the directory holding everything for one claim
func ClaimDir(root, claimID string) string {
	return filepath.Join(root, claimsDir, claimID)
}

// ClaimsRoot returns the directory holding all claims
func ClaimsRoot(root string) string {
	return filepath.Join(root, claimsDir)
}

// ValidateClaimID rejects ids that cannot name a single workspace directory
func ValidateClaimID(claimID string) error {
	if claimID == "" || claimID == "." || claimID == ".." ||
		strings.ContainsAny(claimID, `/\`) || strings.ContainsRune(claimID, 0) {
		return errors.Wrap(errors.KindInputDefect, claimID, "validate claim id",
			fmt.Errorf("%q is not a valid claim id", claimID))
	}
	return nil
}

// extractionFile is one document's output from one extraction run
type extractionFile struct {
	DocumentID   string          `json:"document_id"`
	DocumentType string          `json:"document_type"`
	RunID        string          `json:"extraction_run_id"`
	ExtractedAt  time.Time       `json:"extracted_at"`
	Confidence   *float64        `json:"confidence,omitempty"`
	Facts        []extractedFact `json:"facts"`
}

type extractedFact struct {
	Name       string   `json:"name"`
	Value      any      `json:"value"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// WorkspaceProvider reads extraction JSON files from a workspace directory
type WorkspaceProvider struct {
	root string
}

// NewWorkspaceProvider creates a provider rooted at a workspace directory
func NewWorkspaceProvider(root string) *WorkspaceProvider {
	return &WorkspaceProvider{root: root}
}

// Name implements Provider
func (p *WorkspaceProvider) Name() string {
	return "workspace"
}

// Root returns the workspace directory
func (p *WorkspaceProvider) Root() string {
	return p.root
}

// Collect implements Provider
func (p *WorkspaceProvider) Collect(ctx context.Context, claimID string) ([]model.FactCandidate, error) {
	if err := ValidateClaimID(claimID); err != nil {
		return nil, err
	}

	base := filepath.Join(ClaimDir(p.root, claimID), extractionsDir)
	runs, err := os.ReadDir(base)
	if os.IsNotExist(err) {
		return []model.FactCandidate{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.KindProviderIO, claimID, "list extraction runs", err)
	}

	candidates := []model.FactCandidate{}
	for _, run := range runs {
		if !run.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		runDir := filepath.Join(base, run.Name())
		docs, err := os.ReadDir(runDir)
		if err != nil {
			return nil, errors.Wrap(errors.KindProviderIO, claimID, "list run documents", err)
		}
		for _, doc := range docs {
			if doc.IsDir() || filepath.Ext(doc.Name()) != ".json" {
				continue
			}
			out, err := readExtraction(filepath.Join(runDir, doc.Name()))
			if err != nil {
				return nil, errors.Wrap(errors.KindProviderIO, claimID, "read extraction output", err)
			}
			if out.RunID == "" {
				out.RunID = run.Name()
			}
			if out.DocumentID == "" {
				out.DocumentID = strings.TrimSuffix(doc.Name(), ".json")
			}
			candidates = append(candidates, out.candidates()...)
		}
	}

	return candidates, nil
}

// Fingerprint implements Fingerprinter from the names, sizes and modification
// times of the claim's extraction files
func (p *WorkspaceProvider) Fingerprint(ctx context.Context, claimID string) (string, error) {
	if err := ValidateClaimID(claimID); err != nil {
		return "", err
	}

	base := filepath.Join(ClaimDir(p.root, claimID), extractionsDir)
	var b strings.Builder
	err := filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(base, path)
		fmt.Fprintf(&b, "%s|%d|%d\n", filepath.ToSlash(rel), info.Size(), info.ModTime().UnixNano())
		return nil
	})
	if os.IsNotExist(err) {
		return "empty", nil
	}
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// ListClaims implements Provider
func (p *WorkspaceProvider) ListClaims(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(ClaimsRoot(p.root))
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.KindProviderIO, "", "list claims", err)
	}

	claims := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			claims = append(claims, e.Name())
		}
	}
	sort.Strings(claims)
	return claims, nil
}

func readExtraction(path string) (*extractionFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	dec := json.NewDecoder(f)
	dec.UseNumber()

	var out extractionFile
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return &out, nil
}

func (e *extractionFile) candidates() []model.FactCandidate {
	source := model.SourceDocument{
		DocumentID:         e.DocumentID,
		DocumentType:       e.DocumentType,
		RunID:              e.RunID,
		ExtractedAt:        e.ExtractedAt.UTC(),
		DocumentConfidence: e.Confidence,
	}

	out := make([]model.FactCandidate, 0, len(e.Facts))
	for _, f := range e.Facts {
		out = append(out, model.FactCandidate{
			FactName:   f.Name,
			RawValue:   f.Value,
			Source:     source,
			Confidence: f.Confidence,
		})
	}
	return out
}
