package cqa

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/sjson"
)

// DumpRecord is the per-question slice of a raw QA dump directory.
type DumpRecord struct {
	State            string
	ResponseEntities string
	OrigResponse     string
	Context          string
}

// GenerateInput names the raw inputs of the preprocessing transform: a dump
// directory of QA_<id> folders holding per-field .txt files, and the four
// aligned line files.
type GenerateInput struct {
	DumpDir       string
	EntitiesFile  string
	QuestionsFile string
	TypesFile     string
	RelationsFile string
}

// Generate runs the preprocessing transform and returns the annotation
// JSON. Records are aligned line by line across the dump directory and the
// four aux files, masked (ENTITY1.., RELATION1.. with '-' stripped,
// TYPE1..) and keyed by the whitespace-stripped state plus a running
// counter.
func Generate(in GenerateInput) (string, error) {
	records, err := loadDump(in.DumpDir)
	if err != nil {
		return "", err
	}
	entities, err := readLines(in.EntitiesFile)
	if err != nil {
		return "", err
	}
	questions, err := readLines(in.QuestionsFile)
	if err != nil {
		return "", err
	}
	types, err := readLines(in.TypesFile)
	if err != nil {
		return "", err
	}
	relations, err := readLines(in.RelationsFile)
	if err != nil {
		return "", err
	}

	n := len(records)
	for _, l := range [][]string{entities, questions, types, relations} {
		if len(l) < n {
			n = len(l)
		}
	}

	out := "{}"
	for i := 0; i < n; i++ {
		rec := records[i]
		id := strings.Join(strings.Fields(rec.State), "") + fmt.Sprint(i+1)
		ents := splitTagged(entities[i])
		rels := splitTagged(relations[i])
		typs := splitTagged(types[i])

		key := escapeKey(id)
		if out, err = sjson.Set(out, key+".question", strings.TrimSpace(questions[i])); err != nil {
			return "", err
		}
		out, _ = sjson.Set(out, key+".entity", ents)
		out, _ = sjson.Set(out, key+".relation", rels)
		out, _ = sjson.Set(out, key+".type", typs)
		out, _ = sjson.Set(out, key+".response_entities", rec.ResponseEntities)
		out, _ = sjson.Set(out, key+".orig_response", rec.OrigResponse)

		entityMask := map[string]string{}
		for j, e := range ents {
			entityMask[e] = fmt.Sprintf("ENTITY%d", j+1)
		}
		relationMask := map[string]string{}
		idx := 0
		for _, r := range rels {
			r = strings.ReplaceAll(r, "-", "")
			if _, ok := relationMask[r]; !ok {
				idx++
				relationMask[r] = fmt.Sprintf("RELATION%d", idx)
			}
		}
		typeMask := map[string]string{}
		for j, ty := range typs {
			typeMask[ty] = fmt.Sprintf("TYPE%d", j+1)
		}
		out, _ = sjson.Set(out, key+".entity_mask", entityMask)
		out, _ = sjson.Set(out, key+".relation_mask", relationMask)
		out, _ = sjson.Set(out, key+".type_mask", typeMask)
	}
	return out, nil
}

// GenerateToFile writes the annotation JSON to path.
func GenerateToFile(in GenerateInput, path string) error {
	out, err := Generate(in)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(out), 0o644)
}

// loadDump walks the dump directory. Each leaf directory QA_<id> holds
// files named QA_<k>_<field>.txt with one line per record.
func loadDump(dir string) ([]DumpRecord, error) {
	type qaDir struct {
		id     string
		fields map[string][]string
	}
	var dirs []qaDir
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		names, err := os.ReadDir(path)
		if err != nil {
			return err
		}
		fields := make(map[string][]string)
		for _, e := range names {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
				continue
			}
			field := fieldName(e.Name())
			lines, err := readLines(filepath.Join(path, e.Name()))
			if err != nil {
				return err
			}
			fields[field] = lines
		}
		if len(fields) > 0 {
			base := filepath.Base(path)
			dirs = append(dirs, qaDir{id: base[strings.LastIndex(base, "_")+1:], fields: fields})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var records []DumpRecord
	for _, qd := range dirs {
		states := qd.fields["state"]
		resp := qd.fields["response_entities"]
		orig := qd.fields["orig_response"]
		ctxs := qd.fields["context_utterance"]
		n := len(states)
		for _, l := range [][]string{resp, orig, ctxs} {
			if len(l) < n {
				n = len(l)
			}
		}
		for i := 0; i < n; i++ {
			records = append(records, DumpRecord{
				State:            strings.TrimSpace(states[i]),
				ResponseEntities: strings.TrimSpace(resp[i]),
				OrigResponse:     strings.TrimSpace(orig[i]),
				Context:          strings.TrimSpace(ctxs[i]),
			})
		}
	}
	return records, nil
}

// fieldName strips the QA_<k>_ prefix and the .txt suffix.
func fieldName(name string) string {
	name = strings.TrimSuffix(name, ".txt")
	parts := strings.SplitN(name, "_", 3)
	if len(parts) == 3 && parts[0] == "QA" {
		return parts[2]
	}
	return name
}

// splitTagged splits a "<t>"-separated field line.
func splitTagged(line string) []string {
	var out []string
	for _, p := range strings.Split(strings.TrimSpace(line), "<t>") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

// escapeKey protects sjson path separators inside a record id.
func escapeKey(id string) string {
	id = strings.ReplaceAll(id, "\\", "\\\\")
	id = strings.ReplaceAll(id, ".", "\\.")
	id = strings.ReplaceAll(id, "*", "\\*")
	id = strings.ReplaceAll(id, "?", "\\?")
	return id
}
