package sidecar

import (
	"context"
	"fmt"
	"strings"

	"github.com/voxvault/voxvault/internal/logging"
	"github.com/voxvault/voxvault/internal/recording/store"
)

// Processor runs the side-file pipeline for one recording: transcribe the
// audio payload into transcription.txt, then analyze the transcription into
// analysis.json. The index never sees these writes directly; the next
// reconciliation pass mirrors them.
type Processor struct {
	store       *store.Store
	transcriber Transcriber
	analyzer    Analyzer
	log         logging.Logger
}

// NewProcessor creates a side-file processor.
func NewProcessor(st *store.Store, tr Transcriber, an Analyzer, log logging.Logger) *Processor {
	return &Processor{store: st, transcriber: tr, analyzer: an, log: log}
}

// Process fills in missing side-files for the recording folder. Existing
// side-files are kept: transcription is skipped when transcription.txt is
// already present, analysis when analysis.json is.
func (p *Processor) Process(ctx context.Context, folderPath string) error {
	transcript, haveTranscript := p.store.ReadTranscription(folderPath)
	if !haveTranscript {
		result, err := p.transcriber.Transcribe(ctx, p.store.AudioPath(folderPath))
		if err != nil {
			return fmt.Errorf("transcribe: %w", err)
		}
		transcript = strings.TrimSpace(result.Text)
		if err := p.store.WriteTranscription(folderPath, transcript); err != nil {
			return err
		}
		p.log.Info("transcription written",
			logging.String("folder", folderPath),
			logging.String("language", result.Language),
		)
	}

	if transcript == "" {
		p.log.Info("empty transcription, skipping analysis",
			logging.String("folder", folderPath))
		return nil
	}

	if _, haveAnalysis := p.store.ReadAnalysisRaw(folderPath); haveAnalysis {
		return nil
	}

	raw, err := p.analyzer.Analyze(ctx, transcript)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	if err := p.store.WriteAnalysisRaw(folderPath, raw); err != nil {
		return err
	}
	p.log.Info("analysis written", logging.String("folder", folderPath))
	return nil
}
