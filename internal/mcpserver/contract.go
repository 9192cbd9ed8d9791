package mcpserver

// OutputContract describes the annotated-tree structure that LLM
// consumers must follow when building trees for the annotation tools.
const OutputContract = `# Ansuz Annotated Tree Output Contract

Every sentence tree exchanged with Ansuz MUST follow this structure.

## Node shape

` + "```" + `json
{
  "type": "sentence",
  "node_id": "s1",
  "content": "She should have trusted her instincts.",
  "source_span": {"start": 0, "end": 38},
  "grammatical_role": "root",
  "tense": null,
  "aspect": null,
  "mood": null,
  "voice": null,
  "finiteness": null,
  "tam_construction": null,
  "schema_version": "v2",
  "children": [ ...phrase nodes... ]
}
` + "```" + `

## Rules

1. **Node types** are ` + "`" + `sentence` + "`" + `, ` + "`" + `phrase` + "`" + `, and ` + "`" + `word` + "`" + `.
   A sentence holds only phrases, a phrase holds at least two words,
   a word is always a leaf.
2. **Structure is frozen.** Annotation only adds notes and metadata; it never
   changes types, content, spans, ids, or child order. Do not expect the tree
   shape to differ between input and output.
3. **Absent TAM facts are JSON null**, never the four-letter string "null".
   Trees carrying the string sentinel are rejected at parse time.
4. **Spans** use half-open [start, end) offsets into the sentence. A child
   span must sit inside its parent span; sibling spans must not overlap.
5. **children comes last** in every serialized node. Enrichment fields
   (notes, reason codes, template selection, backoff counters) appear before
   it.
6. **v2_strict mode** additionally requires node_id, grammatical_role,
   schema_version "v2", and at least one typed note per node. v1 mode
   tolerates legacy nodes without ids or spans.
7. **Reason codes**: every annotated node carries exactly one terminal
   reason code (TEMPLATE_NOTE_ACCEPTED, MODEL_NOTE_ACCEPTED, or
   FALLBACK_NOTE_ACCEPTED), preceded by any number of non-terminal codes
   describing the path taken.
8. **Backoff flags**: quality_flags contains "backoff_used" exactly when the
   template selection level is not L1_EXACT; backoff_in_subtree on a parent
   is true when any descendant used backoff.

## Sibling payloads (optional)

- ` + "`" + `translation` + "`" + `: {"language": "...", "text": "..."} (both required when present)
- ` + "`" + `phonetic` + "`" + `: {"ipa": "..."} (ipa required when present)
- ` + "`" + `synonyms` + "`" + `: non-empty string list when present
- ` + "`" + `cefr` + "`" + `: one of A1, A2, B1, B2, C1, C2
`
