package hr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// 查询扩展词
var expansions = map[string]string{
	"late":          "late attendance punctuality discipline",
	"working hours": "working hours shift timing attendance",
	"salaries":      "salary payment monthly compensation",
	"intern":        "internship intern stipend",
}

// 关键词命中时加权的章节标题
var sectionHints = map[string][]string{
	"working hours": {"working hours", "attendance"},
	"attendance":    {"attendance", "punctuality"},
	"late":          {"punctuality", "disciplinary"},
	"leave":         {"leave"},
	"harassment":    {"harassment"},
	"disciplinary":  {"disciplinary", "conduct"},
	"performance":   {"performance"},
	"promotion":     {"performance", "compensation"},
	"salary":        {"compensation", "salary"},
	"resignation":   {"separation", "resignation"},
	"termination":   {"separation", "termination", "disciplinary"},
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "what": true, "how": true, "for": true,
	"of": true, "to": true, "in": true, "on": true, "our": true, "my": true, "do": true, "does": true,
	"we": true, "i": true, "about": true, "policy": true, "policies": true, "and": true, "or": true,
}

// ParsePolicy 按标题把 markdown 制度文档拆成章节，一级标题作为文档标题
func ParsePolicy(orgID, fallbackTitle string, src []byte) []PolicySection {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	title := fallbackTitle
	var sections []PolicySection
	var cur *PolicySection
	var body strings.Builder

	flush := func() {
		if cur != nil {
			cur.Content = strings.TrimSpace(body.String())
			if cur.Content != "" {
				sections = append(sections, *cur)
			}
		}
		body.Reset()
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok {
			heading := strings.TrimSpace(string(h.Text(src)))
			if h.Level == 1 && cur == nil && len(sections) == 0 {
				title = heading
				return ast.WalkSkipChildren, nil
			}
			flush()
			cur = &PolicySection{OrgID: orgID, Heading: heading}
			return ast.WalkSkipChildren, nil
		}
		if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
			if cur == nil {
				cur = &PolicySection{OrgID: orgID, Heading: title}
			}
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				body.Write(seg.Value(src))
			}
			body.WriteString("\n")
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	flush()

	for i := range sections {
		sections[i].Title = title
	}
	return sections
}

// ReplacePolicy 整体替换一份制度文档的章节
func (s *Store) ReplacePolicy(ctx context.Context, orgID, title string, sections []PolicySection) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM policy_sections WHERE org_id = ? AND title = ?`, orgID, title); err != nil {
		return fmt.Errorf("delete policy: %w", err)
	}
	for _, sec := range sections {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO policy_sections (org_id, title, heading, content) VALUES (?, ?, ?, ?)`,
			orgID, title, sec.Heading, sec.Content); err != nil {
			return fmt.Errorf("insert policy section: %w", err)
		}
	}
	return tx.Commit()
}

// ImportPolicyDir 导入目录下全部 .md 制度文档，返回导入的章节数
func (s *Store) ImportPolicyDir(ctx context.Context, orgID, dir string) (int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return 0, err
	}
	sort.Strings(paths)

	total := 0
	for _, p := range paths {
		src, err := os.ReadFile(p)
		if err != nil {
			return total, fmt.Errorf("read %s: %w", p, err)
		}
		name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		sections := ParsePolicy(orgID, name, src)
		if len(sections) == 0 {
			continue
		}
		if err := s.ReplacePolicy(ctx, orgID, sections[0].Title, sections); err != nil {
			return total, err
		}
		total += len(sections)
	}
	return total, nil
}

// ExpandQuery 追加同义扩展词
func ExpandQuery(query string) string {
	lower := strings.ToLower(query)
	expanded := query
	keys := make([]string, 0, len(expansions))
	for k := range expansions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.Contains(lower, k) {
			expanded += " " + expansions[k]
		}
	}
	return expanded
}

// SearchPolicies 关键词打分检索制度章节
func (s *Store) SearchPolicies(ctx context.Context, orgID, query string, limit int) ([]PolicyHit, error) {
	if limit <= 0 {
		limit = 3
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT org_id, title, heading, content FROM policy_sections WHERE org_id = ? ORDER BY id`, orgID)
	if err != nil {
		return nil, fmt.Errorf("query policies: %w", err)
	}
	defer rows.Close()

	terms := queryTerms(ExpandQuery(query))
	lowerQuery := strings.ToLower(query)

	var hits []PolicyHit
	for rows.Next() {
		var sec PolicySection
		if err := rows.Scan(&sec.OrgID, &sec.Title, &sec.Heading, &sec.Content); err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		if score := scoreSection(sec, terms, lowerQuery); score > 0 {
			hits = append(hits, PolicyHit{PolicySection: sec, Score: score})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func queryTerms(q string) []string {
	seen := map[string]bool{}
	var out []string
	for _, w := range strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if len(w) < 3 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

func scoreSection(sec PolicySection, terms []string, lowerQuery string) int {
	heading := strings.ToLower(sec.Heading)
	content := strings.ToLower(sec.Content)

	score := 0
	for _, t := range terms {
		if strings.Contains(heading, t) {
			score += 3
		}
		if strings.Contains(content, t) {
			score++
		}
	}
	if score == 0 {
		return 0
	}
	for key, hints := range sectionHints {
		if !strings.Contains(lowerQuery, key) {
			continue
		}
		for _, h := range hints {
			if strings.Contains(heading, h) {
				score += 10
			}
		}
	}
	if strings.Contains(heading, "purpose and scope") {
		score -= 5
	}
	return score
}
