// Package validate checks the login and evaluation forms before they reach
// the rate limiter. Messages are user facing and kept in Spanish.
package validate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Limit bounds the trimmed length of a field, in characters.
type Limit struct {
	Min int
	Max int
}

var (
	Username      = Limit{Min: 3, Max: 50}
	FavoriteSong  = Limit{Min: 3, Max: 100}
	ProfessorName = Limit{Min: 5, Max: 100}
	Subject       = Limit{Min: 3, Max: 200}
	Opinion       = Limit{Min: 20, Max: 2000}
	ObtainedGrade = Limit{Max: 10}
)

var (
	usernameRE = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	noSpaceRE  = regexp.MustCompile(`^\S+$`)
	unsafeRE   = regexp.MustCompile(`[<>]`)
	spacesRE   = regexp.MustCompile(`\s+`)
)

// Errors maps a form field to its first validation message.
type Errors map[string]string

// OK reports whether the form passed.
func (e Errors) OK() bool { return len(e) == 0 }

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f + ": " + e[f]
	}
	return "invalid form: " + strings.Join(parts, "; ")
}

func (e Errors) add(field string, msgs []string) {
	if len(msgs) > 0 {
		e[field] = msgs[0]
	}
}

func length(s string) int { return utf8.RuneCountInString(s) }

// bounded runs the shared length checks. A blank field yields "" and only
// requiredMsg.
func bounded(value, requiredMsg string, lim Limit) (string, []string) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", []string{requiredMsg}
	}

	var errs []string
	if lim.Min > 0 && length(trimmed) < lim.Min {
		errs = append(errs, fmt.Sprintf("Mínimo %d caracteres", lim.Min))
	}
	if lim.Max > 0 && length(trimmed) > lim.Max {
		errs = append(errs, fmt.Sprintf("Máximo %d caracteres", lim.Max))
	}
	return trimmed, errs
}

func UsernameErrors(value string) []string {
	trimmed, errs := bounded(value, "El nombre de usuario es obligatorio", Username)
	if trimmed != "" && !usernameRE.MatchString(trimmed) {
		errs = append(errs, "Solo letras, números, guiones y guión bajo")
	}
	return errs
}

func FavoriteSongErrors(value string) []string {
	trimmed, errs := bounded(value, "La canción favorita es obligatoria", FavoriteSong)
	if trimmed != "" && !noSpaceRE.MatchString(trimmed) {
		errs = append(errs, "No debe contener espacios")
	}
	return errs
}

func ProfessorNameErrors(value string) []string {
	_, errs := bounded(value, "El nombre del profesor es obligatorio", ProfessorName)
	return errs
}

func SubjectErrors(value string) []string {
	_, errs := bounded(value, "La materia es obligatoria", Subject)
	return errs
}

// OpinionErrors reports the current length alongside the minimum.
func OpinionErrors(value string) []string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return []string{"La opinión es obligatoria"}
	}

	var errs []string
	if n := length(trimmed); n < Opinion.Min {
		errs = append(errs, fmt.Sprintf("Mínimo %d caracteres (%d/%d)", Opinion.Min, n, Opinion.Min))
	}
	if length(trimmed) > Opinion.Max {
		errs = append(errs, fmt.Sprintf("Máximo %d caracteres", Opinion.Max))
	}
	return errs
}

// ObtainedGradeErrors limits the free-text grade, e.g. "9.5" or "NP".
func ObtainedGradeErrors(value string) []string {
	_, errs := bounded(value, "La calificación obtenida es obligatoria", ObtainedGrade)
	return errs
}

// RequiredErrors checks a select box; what names the expected choice.
func RequiredErrors(value, what string) []string {
	if value == "" {
		return []string{"Debes seleccionar " + what}
	}
	return nil
}

// Sanitize trims text, drops angle brackets and collapses whitespace runs.
func Sanitize(text string) string {
	text = strings.TrimSpace(text)
	text = unsafeRE.ReplaceAllString(text, "")
	return spacesRE.ReplaceAllString(text, " ")
}

type LoginForm struct {
	Username     string `json:"username"`
	FavoriteSong string `json:"favorite_song"`
}

func (f LoginForm) Validate() Errors {
	errs := Errors{}
	errs.add("username", UsernameErrors(f.Username))
	errs.add("favorite_song", FavoriteSongErrors(f.FavoriteSong))
	return errs
}

type EvaluationForm struct {
	ProfessorName string `json:"professor_name"`
	SchoolID      string `json:"school_id"`
	MajorID       string `json:"major_id"`
	Subject       string `json:"subject"`
	ObtainedGrade string `json:"obtained_grade"`
	Opinion       string `json:"opinion"`
}

// Validate keeps the first message of every failing field.
func (f EvaluationForm) Validate() Errors {
	errs := Errors{}
	errs.add("professor_name", ProfessorNameErrors(f.ProfessorName))
	errs.add("school_id", RequiredErrors(f.SchoolID, "una escuela"))
	errs.add("major_id", RequiredErrors(f.MajorID, "una carrera"))
	errs.add("subject", SubjectErrors(f.Subject))
	errs.add("obtained_grade", ObtainedGradeErrors(f.ObtainedGrade))
	errs.add("opinion", OpinionErrors(f.Opinion))
	return errs
}

// Sanitized returns a copy with every free-text field passed through Sanitize.
func (f EvaluationForm) Sanitized() EvaluationForm {
	f.ProfessorName = Sanitize(f.ProfessorName)
	f.Subject = Sanitize(f.Subject)
	f.ObtainedGrade = Sanitize(f.ObtainedGrade)
	f.Opinion = Sanitize(f.Opinion)
	return f
}

// CharacterCount drives the counter shown under a text area.
type CharacterCount struct {
	Current     int     `json:"current"`
	Max         int     `json:"max"`
	Remaining   int     `json:"remaining"`
	Percentage  float64 `json:"percentage"`
	IsNearLimit bool    `json:"is_near_limit"`
	IsOverLimit bool    `json:"is_over_limit"`
}

func Count(value string, limit int) CharacterCount {
	n := length(strings.TrimSpace(value))
	c := CharacterCount{
		Current:   n,
		Max:       limit,
		Remaining: limit - n,
	}
	if limit > 0 {
		c.Percentage = float64(n) / float64(limit) * 100
	}
	c.IsNearLimit = c.Percentage >= 80
	c.IsOverLimit = n > limit
	return c
}
