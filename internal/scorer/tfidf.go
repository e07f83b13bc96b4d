package scorer

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/dshills/steve/internal/catalog"
	"github.com/dshills/steve/internal/schema"
)

// TF-IDF tuning.
const (
	tfidfMaxFeatures = 100
	// tfidfMatchSimilarity is the minimum cosine similarity for a principle to count as matched.
	tfidfMatchSimilarity = 0.3
)

// TFIDF scores tickets by cosine similarity between the ticket text and a
// TF-IDF vector fitted on each principle's name, description and keywords.
// Unigrams and bigrams are used after English stop-word removal; idf is
// smoothed as ln((1+n)/(1+df))+1 and vectors are L2-normalised.
type TFIDF struct {
	cat     *catalog.Catalog
	vocab   map[string]int
	idf     []float64
	vectors []map[int]float64
}

// NewTFIDF fits the vectoriser on cat's principles.
func NewTFIDF(cat *catalog.Catalog) *TFIDF {
	docs := make([][]string, len(cat.Principles))
	for i, p := range cat.Principles {
		text := p.Name + " " + p.Description + " " + strings.Join(p.Keywords, " ")
		docs[i] = terms(text)
	}

	// Vocabulary: the most frequent corpus terms, ties broken alphabetically.
	freq := map[string]int{}
	df := map[string]int{}
	for _, doc := range docs {
		inDoc := map[string]bool{}
		for _, term := range doc {
			freq[term]++
			if !inDoc[term] {
				inDoc[term] = true
				df[term]++
			}
		}
	}
	all := make([]string, 0, len(freq))
	for term := range freq {
		all = append(all, term)
	}
	sort.Slice(all, func(i, j int) bool {
		if freq[all[i]] != freq[all[j]] {
			return freq[all[i]] > freq[all[j]]
		}
		return all[i] < all[j]
	})
	if len(all) > tfidfMaxFeatures {
		all = all[:tfidfMaxFeatures]
	}
	sort.Strings(all)

	s := &TFIDF{cat: cat, vocab: make(map[string]int, len(all)), idf: make([]float64, len(all))}
	n := float64(len(docs))
	for i, term := range all {
		s.vocab[term] = i
		s.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	for _, doc := range docs {
		s.vectors = append(s.vectors, s.vectorize(doc))
	}
	return s
}

func (s *TFIDF) Method() string { return MethodTFIDF }

// Score returns max(cosine × weight) × 100 over all principles, plus the
// catalog baseline, clamped to [0, 100].
func (s *TFIDF) Score(t schema.Ticket) Score {
	vec := s.vectorize(terms(t.Summary + " " + t.Description))
	var out Score
	best := 0.0
	for i, p := range s.cat.Principles {
		sim := cosine(vec, s.vectors[i])
		d := schema.PrincipleDetail{
			Principle:  p.Name,
			Similarity: sim,
			Score:      Clamp(sim * p.Weight * MaxScore),
		}
		if sim > tfidfMatchSimilarity {
			d.Matched = true
			out.Matched = append(out.Matched, p.Name)
		}
		if d.Score > best {
			best = d.Score
		}
		out.Details = append(out.Details, d)
	}
	out.Raw = Clamp(best + s.cat.Baseline)
	return out
}

// vectorize builds an L2-normalised tf-idf vector restricted to the vocabulary.
func (s *TFIDF) vectorize(doc []string) map[int]float64 {
	vec := map[int]float64{}
	for _, term := range doc {
		if idx, ok := s.vocab[term]; ok {
			vec[idx]++
		}
	}
	norm := 0.0
	for idx, tf := range vec {
		w := tf * s.idf[idx]
		vec[idx] = w
		norm += w * w
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for idx := range vec {
		vec[idx] /= norm
	}
	return vec
}

func cosine(a, b map[int]float64) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	dot := 0.0
	for idx, w := range a {
		dot += w * b[idx]
	}
	return dot
}

// terms tokenises text into lowercase unigrams and bigrams, dropping stop
// words and single-character tokens before bigrams are formed.
func terms(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	kept := words[:0]
	for _, w := range words {
		if len([]rune(w)) < 2 || stopWords[w] {
			continue
		}
		kept = append(kept, w)
	}
	out := make([]string, 0, 2*len(kept))
	out = append(out, kept...)
	for i := 0; i+1 < len(kept); i++ {
		out = append(out, kept[i]+" "+kept[i+1])
	}
	return out
}

var stopWords = func() map[string]bool {
	list := `a about above after again against all am an and any are as at be because been
before being below between both but by can could did do does doing down during each few for
from further had has have having he her here hers herself him himself his how i if in into is
it its itself just me more most my myself no nor not now of off on once only or other our ours
ourselves out over own same she should so some such than that the their theirs them themselves
then there these they this those through to too under until up very was we were what when where
which while who whom why will with would you your yours yourself yourselves every everything
also within without upon across already via`
	m := map[string]bool{}
	for _, w := range strings.Fields(list) {
		m[w] = true
	}
	return m
}()
