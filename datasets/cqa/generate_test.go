package cqa

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, path string, lines ...string) string {
	t.Helper()
	var body string
	for _, l := range lines {
		body += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func fixtureInput(t *testing.T) GenerateInput {
	t.Helper()
	root := t.TempDir()
	dump := filepath.Join(root, "dump", "QA_1")
	require.NoError(t, os.MkdirAll(dump, 0o755))

	writeFixture(t, filepath.Join(dump, "QA_1_state.txt"),
		"Simple Question (Direct)",
		"Verification (Boolean)")
	writeFixture(t, filepath.Join(dump, "QA_1_response_entities.txt"),
		"Q1471",
		"Q42|Q12")
	writeFixture(t, filepath.Join(dump, "QA_1_orig_response.txt"),
		"Seine",
		"yes")
	writeFixture(t, filepath.Join(dump, "QA_1_context_utterance.txt"),
		"which rivers flow through paris",
		"is douglas adams a writer")

	return GenerateInput{
		DumpDir: filepath.Join(root, "dump"),
		EntitiesFile: writeFixture(t, filepath.Join(root, "entities.txt"),
			"Q90",
			"Q42<t>Q36180"),
		QuestionsFile: writeFixture(t, filepath.Join(root, "questions.txt"),
			"which rivers flow through ENTITY1 ",
			"is ENTITY1 a ENTITY2"),
		TypesFile: writeFixture(t, filepath.Join(root, "types.txt"),
			"Q4022",
			""),
		RelationsFile: writeFixture(t, filepath.Join(root, "relations.txt"),
			"P1-31<t>P131",
			"P106"),
	}
}

func TestGenerate(t *testing.T) {
	out, err := Generate(fixtureInput(t))
	require.NoError(t, err)

	anns, err := Parse(out)
	require.NoError(t, err)
	require.Len(t, anns, 2)

	// ids are the whitespace-stripped state plus a 1-based counter
	assert.Equal(t, "SimpleQuestion(Direct)1", anns[0].Qid)
	assert.Equal(t, "Verification(Boolean)2", anns[1].Qid)

	first := anns[0]
	assert.Equal(t, "which rivers flow through ENTITY1", first.Question, "questions are trimmed")
	assert.Equal(t, []string{"Q90"}, first.Entities)
	assert.Equal(t, []string{"Q4022"}, first.Types)
	assert.Equal(t, "Q1471", first.ResponseEntities)
	assert.Equal(t, "Seine", first.OrigResponse)
	assert.Equal(t, map[string]string{"Q90": "ENTITY1"}, first.EntityMask)
	// "P1-31" and "P131" collapse onto one mask entry once dashes go
	assert.Equal(t, map[string]string{"P131": "RELATION1"}, first.RelationMask)
	assert.Equal(t, map[string]string{"Q4022": "TYPE1"}, first.TypeMask)

	second := anns[1]
	assert.Equal(t, []string{"Q42", "Q36180"}, second.Entities)
	assert.Equal(t, map[string]string{
		"Q42":    "ENTITY1",
		"Q36180": "ENTITY2",
	}, second.EntityMask)
	assert.Empty(t, second.Types)
	assert.Empty(t, second.TypeMask)
}

func TestGenerateToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotations.json")
	require.NoError(t, GenerateToFile(fixtureInput(t), path))

	anns, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, anns, 2)
}

func TestGenerateMissingInputs(t *testing.T) {
	in := fixtureInput(t)
	in.QuestionsFile = filepath.Join(t.TempDir(), "absent.txt")
	_, err := Generate(in)
	assert.Error(t, err)
}

func TestFieldName(t *testing.T) {
	assert.Equal(t, "response_entities", fieldName("QA_3_response_entities.txt"))
	assert.Equal(t, "state", fieldName("QA_12_state.txt"))
	assert.Equal(t, "notes", fieldName("notes.txt"))
}

func TestSplitTagged(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitTagged(" a <t> b "))
	assert.Nil(t, splitTagged("   "))
}
