// Command clustertool performs offline maintenance on a Cluster Manager's
// BoltDB data directory: wiping all state (clean-databases) or listing the
// registered worker-type bundles (dump-registry), without starting a
// manager process.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	bolt "go.etcd.io/bbolt"
)

var (
	dataDir    = flag.String("data-dir", "/var/lib/clustercore", "cluster manager data directory")
	dryRun     = flag.Bool("dry-run", false, "show what would change without making changes")
	backupPath = flag.String("backup", "", "path to back up the database before a destructive command (default: <data-dir>/cluster.db.backup)")
)

var buckets = []string{
	"job_status",
	"worker_status",
	"job_targeting",
	"worker_autoconnect",
	"nodes",
	"worker_registry",
	"worker_registry_latest",
}

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	args := flag.Args()
	if len(args) != 1 {
		log.Fatalf("usage: clustertool [--data-dir DIR] [--dry-run] <clean-databases|dump-registry>")
	}

	dbPath := filepath.Join(*dataDir, "cluster.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		log.Fatalf("database not found at %s", dbPath)
	}

	switch args[0] {
	case "clean-databases":
		if err := cleanDatabases(dbPath); err != nil {
			log.Fatalf("clean-databases failed: %v", err)
		}
	case "dump-registry":
		if err := dumpRegistry(dbPath); err != nil {
			log.Fatalf("dump-registry failed: %v", err)
		}
	default:
		log.Fatalf("unknown command %q", args[0])
	}
}

func cleanDatabases(dbPath string) error {
	if !*dryRun {
		backupFile := *backupPath
		if backupFile == "" {
			backupFile = dbPath + ".backup"
		}
		log.Printf("creating backup: %s", backupFile)
		if err := copyFile(dbPath, backupFile); err != nil {
			return fmt.Errorf("backup: %w", err)
		}
	}

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return fmt.Errorf("open %s: %w", dbPath, err)
	}
	defer db.Close()

	return db.Update(func(tx *bolt.Tx) error {
		for _, name := range buckets {
			if *dryRun {
				count := 0
				if b := tx.Bucket([]byte(name)); b != nil {
					_ = b.ForEach(func(k, v []byte) error { count++; return nil })
				}
				log.Printf("[dry-run] would clear bucket %q (%d entries)", name, count)
				continue
			}
			if err := tx.DeleteBucket([]byte(name)); err != nil && err != bolt.ErrBucketNotFound {
				return fmt.Errorf("delete bucket %s: %w", name, err)
			}
			if _, err := tx.CreateBucket([]byte(name)); err != nil {
				return fmt.Errorf("recreate bucket %s: %w", name, err)
			}
			log.Printf("cleared bucket %q", name)
		}
		return nil
	})
}

// dumpRegistry lists every registered worker-type name and its latest
// version, followed by the bundle JSON, matching how
// pkg/storage.BoltStore.SaveWorkerBundle/GetLatestWorkerBundle key the
// "worker_registry"/"worker_registry_latest" buckets.
func dumpRegistry(dbPath string) error {
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("open %s: %w", dbPath, err)
	}
	defer db.Close()

	return db.View(func(tx *bolt.Tx) error {
		latest := tx.Bucket([]byte("worker_registry_latest"))
		registry := tx.Bucket([]byte("worker_registry"))
		if latest == nil || registry == nil {
			log.Println("no worker registry buckets found")
			return nil
		}

		return latest.ForEach(func(k, v []byte) error {
			name := string(k)
			version, err := strconv.Atoi(string(v))
			if err != nil {
				log.Printf("%s: corrupt version pointer %q", name, v)
				return nil
			}

			key := name + "\x00" + strconv.Itoa(version)
			data := registry.Get([]byte(key))
			if data == nil {
				log.Printf("%s: version %d missing from registry bucket", name, version)
				return nil
			}

			var pretty map[string]interface{}
			if err := json.Unmarshal(data, &pretty); err != nil {
				log.Printf("%s: invalid bundle JSON: %v", name, err)
				return nil
			}
			out, _ := json.MarshalIndent(pretty, "", "  ")
			fmt.Printf("%s (version %d):\n%s\n", name, version, indent(string(out)))
			return nil
		})
	})
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n")
}

func copyFile(src, dst string) error {
	input, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, input, 0600)
}
