package seq2seq

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// Checkpoint is the serialized form of a parameter snapshot plus the run
// metadata needed to resume training.
type Checkpoint struct {
	RunID  string                `json:"run_id"`
	Step   int                   `json:"step"`
	Config Config                `json:"config"`
	Params map[string]savedParam `json:"params"`
}

type savedParam struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

// NewRunID returns a fresh identifier for a training run.
func NewRunID() string {
	return uuid.NewString()
}

// WriteCheckpoint writes the network's shared parameters as zstd-compressed
// JSON.
func (n *Network) WriteCheckpoint(w io.Writer, runID string, step int) error {
	ck := Checkpoint{RunID: runID, Step: step, Config: n.cfg, Params: map[string]savedParam{}}
	for _, name := range n.params.Names() {
		t := n.params.Get(name)
		rows, cols := t.Shape()
		data := make([]float64, len(t.Data()))
		copy(data, t.Data())
		ck.Params[name] = savedParam{Rows: rows, Cols: cols, Data: data}
	}
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(zw).Encode(&ck); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// ReadCheckpoint restores the shared parameters from a checkpoint stream.
// The checkpoint must have been written by a network of the same shape.
func (n *Network) ReadCheckpoint(r io.Reader) (*Checkpoint, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	var ck Checkpoint
	if err := json.NewDecoder(zr).Decode(&ck); err != nil {
		return nil, err
	}
	if ck.Config != n.cfg {
		return nil, fmt.Errorf("seq2seq: checkpoint config %+v does not match network %+v", ck.Config, n.cfg)
	}
	for _, name := range n.params.Names() {
		t := n.params.Get(name)
		sp, ok := ck.Params[name]
		if !ok {
			return nil, fmt.Errorf("seq2seq: checkpoint missing parameter %q", name)
		}
		rows, cols := t.Shape()
		if sp.Rows != rows || sp.Cols != cols || len(sp.Data) != len(t.Data()) {
			return nil, fmt.Errorf("seq2seq: parameter %q shape %dx%d vs checkpoint %dx%d", name, rows, cols, sp.Rows, sp.Cols)
		}
		copy(t.Data(), sp.Data)
	}
	return &ck, nil
}

// WriteCheckpointToFile writes a checkpoint to the named file.
func (n *Network) WriteCheckpointToFile(name, runID string, step int) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := n.WriteCheckpoint(f, runID, step); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadCheckpointFromFile restores parameters from the named file.
func (n *Network) ReadCheckpointFromFile(name string) (*Checkpoint, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return n.ReadCheckpoint(f)
}
