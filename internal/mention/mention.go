// Package mention scans free text for @<emoji><username> tokens and resolves
// them to addresses.
package mention

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"juicyid/internal/identity"
	platformstrings "juicyid/pkg/platform/strings"
)

// Mention is one raw @<emoji><username> match in a text.
type Mention struct {
	MatchedText string
	Emoji       string
	Username    string
	Start       int
	End         int
}

// PairResolver resolves an (emoji, username) pair to its owning address,
// empty if unclaimed. The identity registry satisfies it.
type PairResolver interface {
	ResolveIdentity(ctx context.Context, emoji, username string) (string, error)
}

// Parser finds and resolves mentions. The pattern is built from the same
// injected format rules the registry validates claims against, so the two
// can never drift apart.
type Parser struct {
	resolver PairResolver
	pattern  *regexp.Regexp
}

func NewParser(format identity.Format, resolver PairResolver) *Parser {
	return &Parser{
		resolver: resolver,
		pattern:  buildPattern(format),
	}
}

func buildPattern(format identity.Format) *regexp.Regexp {
	escaped := make([]string, len(format.Emojis))
	for i, e := range format.Emojis {
		escaped[i] = regexp.QuoteMeta(e)
	}
	// The username rule is anchored for whole-string validation; strip the
	// anchors to embed it.
	username := strings.TrimSuffix(strings.TrimPrefix(format.UsernamePattern.String(), "^"), "$")
	return regexp.MustCompile(`@(` + strings.Join(escaped, "|") + `)(` + username + `)`)
}

// FindMentions returns every raw mention in text, left to right,
// non-overlapping. Offsets are byte offsets into text.
func (p *Parser) FindMentions(text string) []Mention {
	matches := p.pattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	out := make([]Mention, 0, len(matches))
	for _, m := range matches {
		out = append(out, Mention{
			MatchedText: text[m[0]:m[1]],
			Emoji:       text[m[2]:m[3]],
			Username:    text[m[4]:m[5]],
			Start:       m[0],
			End:         m[1],
		})
	}
	return out
}

// ResolveAllMentions maps each distinct matched token in text onto its
// owning address, empty string when the pair is unclaimed. A token repeated
// N times triggers exactly one resolver lookup; distinct tokens resolve
// concurrently.
func (p *Parser) ResolveAllMentions(ctx context.Context, text string) (map[string]string, error) {
	mentions := p.FindMentions(text)
	if len(mentions) == 0 {
		return map[string]string{}, nil
	}

	byToken := make(map[string]Mention, len(mentions))
	tokens := make([]string, 0, len(mentions))
	for _, m := range mentions {
		if _, ok := byToken[m.MatchedText]; !ok {
			byToken[m.MatchedText] = m
		}
		tokens = append(tokens, m.MatchedText)
	}
	tokens = platformstrings.DedupeAndTrim(tokens)

	var mu sync.Mutex
	resolved := make(map[string]string, len(tokens))

	g, gctx := errgroup.WithContext(ctx)
	for _, token := range tokens {
		m := byToken[token]
		g.Go(func() error {
			addr, err := p.resolver.ResolveIdentity(gctx, m.Emoji, m.Username)
			if err != nil {
				return err
			}
			mu.Lock()
			resolved[m.MatchedText] = addr
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return resolved, nil
}
