package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ppiankov/factgate/internal/errors"
	"github.com/ppiankov/factgate/internal/logging"
	"github.com/ppiankov/factgate/internal/model"
	"github.com/ppiankov/factgate/internal/provider"
)

// Report file names inside <claim>/reconciliation/
const (
	ReportJSON     = "report.json"
	ReportMarkdown = "report.md"
	ReportLLM      = "report.llm.md"
)

// ReportStore reads and writes reconciliation reports in a workspace
type ReportStore struct {
	root string
}

// NewReportStore creates a store rooted at a workspace directory
func NewReportStore(root string) *ReportStore {
	return &ReportStore{root: root}
}

// Dir returns the reconciliation directory for a claim
func (s *ReportStore) Dir(claimID string) string {
	return filepath.Join(provider.ClaimDir(s.root, claimID), provider.ReconciliationDir)
}

// Path returns the JSON report path for a claim
func (s *ReportStore) Path(claimID string) string {
	return filepath.Join(s.Dir(claimID), ReportJSON)
}

// Save writes report.json, and report.md (plus report.llm.md when a
// narrative exists) if markdown is set. Each file is replaced atomically so
// readers never observe a partial report; companions left from an earlier
// save are deleted when this save does not produce them.
func (s *ReportStore) Save(report *model.ReconciliationReport, markdown bool) (string, error) {
	if err := provider.ValidateClaimID(report.ClaimID); err != nil {
		return "", err
	}

	data, err := MarshalReport(report)
	if err != nil {
		return "", err
	}

	dir := s.Dir(report.ClaimID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	path := filepath.Join(dir, ReportJSON)
	if err := writeFileAtomic(path, data); err != nil {
		return "", err
	}

	// Companions not rewritten are removed so they never describe an older report
	mdPath, llmPath := filepath.Join(dir, ReportMarkdown), filepath.Join(dir, ReportLLM)
	if markdown {
		if err := writeFileAtomic(mdPath, []byte(RenderMarkdown(report))); err != nil {
			return "", err
		}
	} else if err := removeStale(mdPath); err != nil {
		return "", err
	}
	if markdown && report.LLM != nil && report.LLM.Enabled && report.LLM.SummaryMD != "" {
		if err := writeFileAtomic(llmPath, []byte(RenderLLMMarkdown(report.LLM))); err != nil {
			return "", err
		}
	} else if err := removeStale(llmPath); err != nil {
		return "", err
	}
	return path, nil
}

func removeStale(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Load reads one claim's report
func (s *ReportStore) Load(claimID string) (*model.ReconciliationReport, error) {
	if err := provider.ValidateClaimID(claimID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(claimID))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("report for claim %s: %w", claimID, errors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	return UnmarshalReport(data)
}

// LoadAll reads every report in the workspace, sorted by claim id.
// Claims without a report are skipped; unreadable reports are logged and skipped.
func (s *ReportStore) LoadAll(ctx context.Context) ([]*model.ReconciliationReport, error) {
	entries, err := os.ReadDir(provider.ClaimsRoot(s.root))
	if os.IsNotExist(err) {
		return []*model.ReconciliationReport{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}

	reports := []*model.ReconciliationReport{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		report, err := s.Load(e.Name())
		if errors.IsNotFound(err) {
			continue
		}
		if err != nil {
			logging.FromContext(ctx).Warn().Err(err).Str("claim_id", e.Name()).Msg("skipping unreadable report")
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// MarshalReport encodes a report as indented JSON with a trailing newline
func MarshalReport(report *model.ReconciliationReport) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return append(data, '\n'), nil
}

// UnmarshalReport decodes a report written by MarshalReport
func UnmarshalReport(data []byte) (*model.ReconciliationReport, error) {
	var report model.ReconciliationReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &report, nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
