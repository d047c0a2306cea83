package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"voxelsiege.gg/internal/protocol"
)

// Read-only queries against the runtime index. Queries:
//   edits      recent committed edits (optionally by -actor)
//   denials    recent silent rejections (optionally by -actor or -reason)
//   griefers   actors ranked by denial count
//   cascades   edits with the largest cascade fallout
func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	actor := fs.Int("actor", -1, "actor filter (player id)")
	reason := fs.String("reason", "", "denial reason filter")
	_ = fs.Parse(args)

	q := "edits"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	// Catch typos before they turn into silently empty result sets.
	if !protocol.IsKnownDenial(*reason) {
		fmt.Fprintln(os.Stderr, "unknown denial reason:", *reason)
		os.Exit(2)
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "world.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	switch q {
	case "edits":
		queryEdits(db, *actor, *limit)
	case "denials":
		queryDenials(db, *actor, *reason, *limit)
	case "griefers":
		queryGriefers(db, *limit)
	case "cascades":
		queryCascades(db, *limit)
	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		os.Exit(2)
	}
}

func queryEdits(db *sql.DB, actor, limit int) {
	q := `SELECT tick, actor, kind, x, y, z, color, vacated FROM edits`
	var args []any
	if actor >= 0 {
		q += ` WHERE actor = ?`
		args = append(args, actor)
	}
	q += ` ORDER BY tick DESC, seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	defer rows.Close()
	for rows.Next() {
		var tick uint64
		var a int
		var kind string
		var x, y, z, vacated int
		var color int64
		if err := rows.Scan(&tick, &a, &kind, &x, &y, &z, &color, &vacated); err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
		fmt.Printf("tick=%d actor=%d %s (%d,%d,%d) color=%08X vacated=%d\n", tick, a, kind, x, y, z, uint32(color), vacated)
	}
}

func queryDenials(db *sql.DB, actor int, reason string, limit int) {
	q := `SELECT tick, actor, kind, x, y, z, reason FROM denials`
	var conds []string
	var args []any
	if actor >= 0 {
		conds = append(conds, `actor = ?`)
		args = append(args, actor)
	}
	if reason != "" {
		conds = append(conds, `reason = ?`)
		args = append(args, reason)
	}
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	q += ` ORDER BY tick DESC, seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	defer rows.Close()
	for rows.Next() {
		var tick uint64
		var a int
		var kind, rsn string
		var x, y, z int
		if err := rows.Scan(&tick, &a, &kind, &x, &y, &z, &rsn); err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
		fmt.Printf("tick=%d actor=%d %s (%d,%d,%d) %s\n", tick, a, kind, x, y, z, rsn)
	}
}

func queryGriefers(db *sql.DB, limit int) {
	rows, err := db.Query(`SELECT actor, COUNT(*) AS n, MAX(tick) FROM denials GROUP BY actor ORDER BY n DESC LIMIT ?`, limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	defer rows.Close()
	for rows.Next() {
		var a, n int
		var lastTick uint64
		if err := rows.Scan(&a, &n, &lastTick); err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
		fmt.Printf("actor=%d denials=%d last_tick=%d\n", a, n, lastTick)
	}
}

func queryCascades(db *sql.DB, limit int) {
	rows, err := db.Query(`SELECT tick, actor, kind, x, y, z, vacated FROM edits WHERE vacated > 1 ORDER BY vacated DESC LIMIT ?`, limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	defer rows.Close()
	for rows.Next() {
		var tick uint64
		var a int
		var kind string
		var x, y, z, vacated int
		if err := rows.Scan(&tick, &a, &kind, &x, &y, &z, &vacated); err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
		fmt.Printf("tick=%d actor=%d %s (%d,%d,%d) vacated=%d\n", tick, a, kind, x, y, z, vacated)
	}
}
