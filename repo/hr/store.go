package hr

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrDuplicate 记录已存在
var ErrDuplicate = errors.New("record already exists")

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// Store 业务数据存储，所有查询都按组织隔离
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open 打开数据库文件并建表
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		// 每个连接都是独立的内存库
		db.SetMaxOpenConns(1)
	}
	s, err := NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore 使用已有连接创建存储
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close 关闭数据库
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS members (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			username TEXT NOT NULL,
			display_name TEXT NOT NULL,
			email TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_members_org ON members(org_id);

		CREATE TABLE IF NOT EXISTS candidates (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			org_id TEXT NOT NULL,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			skills TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TEXT NOT NULL,
			UNIQUE(org_id, email)
		);

		CREATE TABLE IF NOT EXISTS jobs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			org_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			requirements TEXT NOT NULL,
			department TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			title TEXT NOT NULL,
			start_at TEXT NOT NULL,
			end_at TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			attendees TEXT NOT NULL DEFAULT '',
			created_by TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS interviews (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			org_id TEXT NOT NULL,
			candidate_id INTEGER NOT NULL REFERENCES candidates(id),
			interviewer_id TEXT NOT NULL,
			job_title TEXT NOT NULL,
			start_at TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL,
			status TEXT NOT NULL,
			event_id TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS leaves (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			org_id TEXT NOT NULL,
			employee_name TEXT NOT NULL,
			leave_type TEXT NOT NULL,
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			status TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS email_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			org_id TEXT NOT NULL,
			recipient TEXT NOT NULL,
			subject TEXT NOT NULL,
			body TEXT NOT NULL,
			status TEXT NOT NULL,
			sent_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS policy_sections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			org_id TEXT NOT NULL,
			title TEXT NOT NULL,
			heading TEXT NOT NULL,
			content TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_policy_org ON policy_sections(org_id, title);
	`)
	return err
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTS(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// AddMember 新增或更新组织成员
func (s *Store) AddMember(ctx context.Context, m *Member) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO members (id, org_id, username, display_name, email, title) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET org_id = excluded.org_id, username = excluded.username,
			display_name = excluded.display_name, email = excluded.email, title = excluded.title
	`, m.ID, m.OrgID, m.Username, m.DisplayName, strings.ToLower(m.Email), m.Title)
	if err != nil {
		return fmt.Errorf("upsert member: %w", err)
	}
	return nil
}

// GetMember 按ID读取成员
func (s *Store) GetMember(ctx context.Context, orgID, id string) (*Member, error) {
	var m Member
	err := s.db.QueryRowContext(ctx,
		`SELECT id, org_id, username, display_name, email, title FROM members WHERE org_id = ? AND id = ?`,
		orgID, id).Scan(&m.ID, &m.OrgID, &m.Username, &m.DisplayName, &m.Email, &m.Title)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query member: %w", err)
	}
	return &m, nil
}

// ResolveEmails 把姓名、用户名或邮箱解析为组织内的邮箱地址，成员与候选人都参与匹配
func (s *Store) ResolveEmails(ctx context.Context, orgID, query string) ([]string, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	if strings.Contains(q, "@") {
		return []string{q}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT email FROM members
		WHERE org_id = ? AND (lower(username) = ? OR lower(display_name) LIKE ?)
		UNION
		SELECT email FROM candidates
		WHERE org_id = ? AND lower(name) LIKE ?
		ORDER BY email
	`, orgID, q, "%"+q+"%", orgID, "%"+q+"%")
	if err != nil {
		return nil, fmt.Errorf("resolve emails: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		out = append(out, email)
	}
	return out, rows.Err()
}

// AddCandidate 新增候选人，同组织内邮箱唯一
func (s *Store) AddCandidate(ctx context.Context, c *Candidate) error {
	if c.Status == "" {
		c.Status = "pending"
	}
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.CreatedAt = s.now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO candidates (org_id, name, email, phone, skills, source, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.OrgID, c.Name, c.Email, c.Phone, strings.Join(c.Skills, ","), c.Source, c.Status, ts(c.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return ErrDuplicate
		}
		return fmt.Errorf("insert candidate: %w", err)
	}
	c.ID, _ = res.LastInsertId()
	return nil
}

// CandidateFilter 候选人查询条件
type CandidateFilter struct {
	Name   string
	Email  string
	Status string
	Limit  int
}

// SearchCandidates 按条件查询候选人，最新的在前
func (s *Store) SearchCandidates(ctx context.Context, orgID string, f CandidateFilter) ([]*Candidate, error) {
	query := `SELECT id, org_id, name, email, phone, skills, source, status, created_at FROM candidates WHERE org_id = ?`
	args := []any{orgID}
	if f.Name != "" {
		query += ` AND lower(name) LIKE ?`
		args = append(args, "%"+strings.ToLower(f.Name)+"%")
	}
	if f.Email != "" {
		query += ` AND lower(email) LIKE ?`
		args = append(args, "%"+strings.ToLower(f.Email)+"%")
	}
	if f.Status != "" {
		query += ` AND lower(status) = ?`
		args = append(args, strings.ToLower(f.Status))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	return s.queryCandidates(ctx, query, args...)
}

// ResolveCandidates 按邮箱或姓名查找候选人
func (s *Store) ResolveCandidates(ctx context.Context, orgID, query string) ([]*Candidate, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	if strings.Contains(q, "@") {
		return s.queryCandidates(ctx,
			`SELECT id, org_id, name, email, phone, skills, source, status, created_at FROM candidates WHERE org_id = ? AND email = ?`,
			orgID, q)
	}
	return s.queryCandidates(ctx,
		`SELECT id, org_id, name, email, phone, skills, source, status, created_at FROM candidates WHERE org_id = ? AND lower(name) LIKE ? ORDER BY id`,
		orgID, "%"+q+"%")
}

// ShortlistBySkills 返回技能命中任一关键词的候选人
func (s *Store) ShortlistBySkills(ctx context.Context, orgID string, skills []string, limit int) ([]*Candidate, error) {
	all, err := s.SearchCandidates(ctx, orgID, CandidateFilter{})
	if err != nil {
		return nil, err
	}
	var out []*Candidate
	for _, c := range all {
		have := strings.ToLower(strings.Join(c.Skills, ","))
		for _, want := range skills {
			want = strings.ToLower(strings.TrimSpace(want))
			if want != "" && strings.Contains(have, want) {
				out = append(out, c)
				break
			}
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) queryCandidates(ctx context.Context, query string, args ...any) ([]*Candidate, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var out []*Candidate
	for rows.Next() {
		var c Candidate
		var skills, createdAt string
		if err := rows.Scan(&c.ID, &c.OrgID, &c.Name, &c.Email, &c.Phone, &skills, &c.Source, &c.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		if skills != "" {
			c.Skills = strings.Split(skills, ",")
		}
		c.CreatedAt = parseTS(createdAt)
		out = append(out, &c)
	}
	return out, rows.Err()
}

// AddJob 新增职位
func (s *Store) AddJob(ctx context.Context, j *Job) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (org_id, title, description, requirements, department) VALUES (?, ?, ?, ?, ?)`,
		j.OrgID, j.Title, j.Description, j.Requirements, j.Department)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	j.ID, _ = res.LastInsertId()
	return nil
}

// AddEvent 新增日历事件
func (s *Store) AddEvent(ctx context.Context, e *Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, org_id, title, start_at, end_at, description, attendees, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.OrgID, e.Title, ts(e.Start), ts(e.End), e.Description, strings.Join(e.Attendees, ","), e.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// AddInterview 新增面试
func (s *Store) AddInterview(ctx context.Context, i *Interview) error {
	if i.Status == "" {
		i.Status = "scheduled"
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO interviews (org_id, candidate_id, interviewer_id, job_title, start_at, duration_minutes, status, event_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, i.OrgID, i.CandidateID, i.InterviewerID, i.JobTitle, ts(i.Start), int(i.Duration/time.Minute), i.Status, i.EventID)
	if err != nil {
		return fmt.Errorf("insert interview: %w", err)
	}
	i.ID, _ = res.LastInsertId()
	return nil
}

// ListInterviews 列出面试，upcoming 为 true 时只返回未开始的
func (s *Store) ListInterviews(ctx context.Context, orgID string, upcoming bool, limit int) ([]*Interview, error) {
	query := `
		SELECT i.id, i.org_id, i.candidate_id, c.name, c.email, i.interviewer_id, i.job_title,
			i.start_at, i.duration_minutes, i.status, i.event_id
		FROM interviews i JOIN candidates c ON c.id = i.candidate_id
		WHERE i.org_id = ?`
	args := []any{orgID}
	if upcoming {
		query += ` AND i.start_at >= ?`
		args = append(args, ts(s.now()))
	}
	query += ` ORDER BY i.start_at ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query interviews: %w", err)
	}
	defer rows.Close()

	var out []*Interview
	for rows.Next() {
		var i Interview
		var start string
		var minutes int
		if err := rows.Scan(&i.ID, &i.OrgID, &i.CandidateID, &i.CandidateName, &i.CandidateEmail,
			&i.InterviewerID, &i.JobTitle, &start, &minutes, &i.Status, &i.EventID); err != nil {
			return nil, fmt.Errorf("scan interview: %w", err)
		}
		i.Start = parseTS(start)
		i.Duration = time.Duration(minutes) * time.Minute
		out = append(out, &i)
	}
	return out, rows.Err()
}

// AddLeave 新增请假申请
func (s *Store) AddLeave(ctx context.Context, l *Leave) error {
	if l.Status == "" {
		l.Status = "pending"
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO leaves (org_id, employee_name, leave_type, start_date, end_date, status) VALUES (?, ?, ?, ?, ?, ?)
	`, l.OrgID, l.EmployeeName, l.LeaveType, ts(l.Start), ts(l.End), l.Status)
	if err != nil {
		return fmt.Errorf("insert leave: %w", err)
	}
	l.ID, _ = res.LastInsertId()
	return nil
}

// ListLeaves 按状态列出请假申请，status 为 all 时不过滤
func (s *Store) ListLeaves(ctx context.Context, orgID, status string) ([]*Leave, error) {
	query := `SELECT id, org_id, employee_name, leave_type, start_date, end_date, status FROM leaves WHERE org_id = ?`
	args := []any{orgID}
	if status != "" && !strings.EqualFold(status, "all") {
		query += ` AND lower(status) = ?`
		args = append(args, strings.ToLower(status))
	}
	query += ` ORDER BY start_date DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query leaves: %w", err)
	}
	defer rows.Close()

	var out []*Leave
	for rows.Next() {
		var l Leave
		var start, end string
		if err := rows.Scan(&l.ID, &l.OrgID, &l.EmployeeName, &l.LeaveType, &start, &end, &l.Status); err != nil {
			return nil, fmt.Errorf("scan leave: %w", err)
		}
		l.Start, l.End = parseTS(start), parseTS(end)
		out = append(out, &l)
	}
	return out, rows.Err()
}

// LogEmail 记录已发送邮件
func (s *Store) LogEmail(ctx context.Context, e *EmailLog) error {
	if e.SentAt.IsZero() {
		e.SentAt = s.now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO email_logs (org_id, recipient, subject, body, status, sent_at) VALUES (?, ?, ?, ?, ?, ?)
	`, e.OrgID, e.Recipient, e.Subject, e.Body, e.Status, ts(e.SentAt))
	if err != nil {
		return fmt.Errorf("insert email log: %w", err)
	}
	e.ID, _ = res.LastInsertId()
	return nil
}

// EmailLogs 列出邮件记录，最新的在前
func (s *Store) EmailLogs(ctx context.Context, orgID string, limit int) ([]*EmailLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, org_id, recipient, subject, body, status, sent_at FROM email_logs
		WHERE org_id = ? ORDER BY id DESC LIMIT ?
	`, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("query email logs: %w", err)
	}
	defer rows.Close()

	var out []*EmailLog
	for rows.Next() {
		var e EmailLog
		var sentAt string
		if err := rows.Scan(&e.ID, &e.OrgID, &e.Recipient, &e.Subject, &e.Body, &e.Status, &sentAt); err != nil {
			return nil, fmt.Errorf("scan email log: %w", err)
		}
		e.SentAt = parseTS(sentAt)
		out = append(out, &e)
	}
	return out, rows.Err()
}
