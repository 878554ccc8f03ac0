package synth

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/book-expert/logger"
	"github.com/book-expert/speech-publisher/internal/core"
	"github.com/book-expert/speech-publisher/internal/fileutil"
)

// CommandModel renders chunks by running a local TTS binary once per chunk.
// The binary writes a WAV file to the path given by --tts_export.
type CommandModel struct {
	binaryPath string
	modelName  string
	modelPath  string
	sampleRate int
	log        *logger.Logger
}

// NewCommandModel creates a model backed by a local binary.
func NewCommandModel(binaryPath, modelName string, sampleRate int, log *logger.Logger) *CommandModel {
	return &CommandModel{
		binaryPath: binaryPath,
		modelName:  modelName,
		modelPath:  "",
		sampleRate: sampleRate,
		log:        log,
	}
}

// Load resolves the binary and the model file.
func (m *CommandModel) Load(_ context.Context) error {
	resolvedBinary, err := exec.LookPath(m.binaryPath)
	if err != nil {
		return fmt.Errorf("tts binary %q not found: %w", m.binaryPath, err)
	}

	m.binaryPath = resolvedBinary

	if m.modelName == "" {
		return nil
	}

	resolvedModel, err := fileutil.ResolveModelPath(m.modelName)
	if err != nil {
		return fmt.Errorf("failed to resolve model: %w", err)
	}

	m.modelPath = resolvedModel

	return nil
}

// Close is a no-op; every chunk runs in its own process.
func (m *CommandModel) Close() error {
	return nil
}

// SampleRate returns the rate the binary is expected to produce.
func (m *CommandModel) SampleRate() int {
	return m.sampleRate
}

// Generate renders chunks one after another.
func (m *CommandModel) Generate(ctx context.Context, chunks []string, params core.SynthesisParams) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}

	results := make([][]float32, 0, len(chunks))

	for index, chunk := range chunks {
		samples, err := m.renderChunk(ctx, chunk, params)
		if err != nil {
			return nil, fmt.Errorf(errFmtChunkFailed, index+1, err)
		}

		results = append(results, samples)
	}

	return results, nil
}

func (m *CommandModel) renderChunk(ctx context.Context, text string, params core.SynthesisParams) ([]float32, error) {
	tempFile, err := os.CreateTemp("", "tts-chunk-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file for tts output: %w", err)
	}

	closeErr := tempFile.Close()
	if closeErr != nil {
		m.log.Warn("Failed to close temp file '%s': %v", tempFile.Name(), closeErr)
	}

	defer func() {
		removeErr := os.Remove(tempFile.Name())
		if removeErr != nil {
			m.log.Warn("Failed to remove temp file '%s': %v", tempFile.Name(), removeErr)
		}
	}()

	args := m.buildArgs(text, tempFile.Name(), params)

	// #nosec G204 -- binary path comes from configuration, text is passed as a single argument
	cmd := exec.CommandContext(ctx, m.binaryPath, args...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("tts binary execution failed: %w - output: %s", err, string(output))
	}

	wavData, err := os.ReadFile(tempFile.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data from temp file: %w", err)
	}

	return decodeAtRate(wavData, m.sampleRate)
}

func (m *CommandModel) buildArgs(text, exportPath string, params core.SynthesisParams) []string {
	var args []string

	if m.modelPath != "" {
		args = append(args, "-m", m.modelPath)
	}

	if params.PromptPath != "" {
		args = append(args, "--audio_prompt", params.PromptPath)
	}

	return append(args,
		"--exaggeration", strconv.FormatFloat(params.Exaggeration, 'f', 2, 64),
		"--min_p", strconv.FormatFloat(params.MinP, 'f', 2, 64),
		"--tts_export", exportPath,
		"-p", text,
	)
}
