package repository

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"
)

// nullStringPtr はsql.NullStringを*stringに変換する。NULLはnil。
func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// nullIntPtr はsql.NullInt64を*intに変換する。NULLはnil。
func nullIntPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

// nullTimePtr はsql.NullTimeを*time.Timeに変換する。NULLはnil。
func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// jsonParam はjsonbカラムに渡す値を返す。
// lib/pqは[]byteをbyteaとして送るため文字列に変換する。空はNULL。
func jsonParam(raw json.RawMessage) any {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return string(raw)
}

// likeEscaper はLIKEのメタ文字をエスケープする。エスケープ文字はPostgreSQL既定のバックスラッシュ。
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern は部分一致用のLIKEパターンを返す。
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
