package registry

// BuiltinVersion is the version of the registry that ships in the binary.
const BuiltinVersion = "v1"

// DefaultSnapshot returns the built-in template registry used when no
// registry file is configured. Keys follow the canonical
// level|pos|dep|tam|lexical tuple; every leaf-only level has a catch-all
// entry so L4 lookups always land somewhere.
func DefaultSnapshot() *Snapshot {
	s, err := NewSnapshot(BuiltinVersion, defaultEntries())
	if err != nil {
		// The built-in table is fixed at compile time; a failure here is
		// a programming error, not a runtime condition.
		panic(err)
	}
	return s
}

func defaultEntries() []TemplateEntry {
	return []TemplateEntry{
		{
			ContextKey: "sentence|_|_|_|_",
			TemplateID: "sentence_generic",
			NodeFamily: "sentence",
			Variants: []string{
				"A complete sentence built around a main clause.",
				"This clause expresses a full thought with a subject and a predicate.",
				"An independent clause that stands on its own as a statement.",
				"The whole utterance: a subject combined with what is said about it.",
				"A full statement whose parts are analysed phrase by phrase below.",
			},
		},
		{
			ContextKey: "phrase|_|_|_|_",
			TemplateID: "phrase_generic",
			NodeFamily: "phrase",
			Variants: []string{
				"A group of words functioning as a single grammatical unit.",
				"Several words that act together as one building block of the clause.",
				"A word group playing one grammatical role inside the sentence.",
				"A phrase: words that belong together and move together.",
				"One structural chunk of the sentence, made of closely linked words.",
			},
		},
		{
			ContextKey: "word|_|_|_|_",
			TemplateID: "word_generic",
			NodeFamily: "word",
			Variants: []string{
				"A single word contributing its own meaning to the phrase.",
				"One word carrying a specific grammatical job in its phrase.",
				"An individual word whose form signals its role in the sentence.",
				"A word whose placement here follows normal English word order.",
				"One lexical item slotted into the structure of its phrase.",
			},
		},
		{
			ContextKey: "phrase|verb|_|_|_",
			TemplateID: "phrase_verb",
			NodeFamily: "phrase",
			Variants: []string{
				"A verb phrase describing the action or state of the subject.",
				"The predicate core: the verb together with its helpers and objects.",
				"This verb group tells us what the subject does or experiences.",
				"A verb-centred phrase expressing what happens in the clause.",
				"The action part of the sentence, built around its main verb.",
			},
		},
		{
			ContextKey: "phrase|noun|_|_|_",
			TemplateID: "phrase_noun",
			NodeFamily: "phrase",
			Variants: []string{
				"A noun phrase naming a person, thing, or idea in the clause.",
				"This word group works as a single noun-like unit.",
				"A noun with its modifiers, acting together as one participant.",
				"The naming part: a noun phrase filling a slot in the clause.",
				"A noun-centred group that refers to one entity in the sentence.",
			},
		},
		{
			ContextKey: "phrase|adp|_|_|_",
			TemplateID: "phrase_prepositional",
			NodeFamily: "phrase",
			Variants: []string{
				"A prepositional phrase adding circumstance to the clause.",
				"A preposition plus its complement, modifying the main action.",
				"This phrase locates the action in time, space, or manner.",
				"A prepositional group answering when, where, or how.",
				"The preposition here ties its noun group back to the verb.",
			},
		},
		{
			ContextKey: "phrase|verb|_|modal_perfect|_",
			TemplateID: "phrase_verb_modal_perfect",
			NodeFamily: "phrase",
			Variants: []string{
				"A modal perfect: the speaker looks back at an unrealised possibility.",
				"Modal plus perfect infinitive, expressing hindsight about the past.",
				"This construction judges a past action that did not happen.",
				"A modal perfect verb group: advice or regret about the past.",
				"The modal combines with the perfect to evaluate a missed past action.",
			},
		},
		{
			ContextKey: "word|aux|aux|_|should",
			TemplateID: "word_aux_should",
			NodeFamily: "word",
			Variants: []string{
				"The modal auxiliary marking advice or expectation.",
				"An auxiliary verb adding the speaker's judgement to the main verb.",
				"This modal softens the statement into a recommendation.",
				"A helping verb: it carries mood, not the action itself.",
				"The auxiliary that frames the main verb as the right course of action.",
			},
		},
	}
}
