package config

// Starter is the commented config written by `sprocmap init`. Its values
// mirror Default.
const Starter = `# sprocmap configuration. Command-line flags override these values.

# Languages to scan (python, javascript). Empty scans all.
languages: []

# Glob patterns, relative to the root, for files to skip.
exclude:
  # - "tests/**"
  # - "**/migrations/*.py"

# Files larger than this many bytes are skipped. 0 disables the limit.
max_file_size: 1048576

# Parallel file workers. 0 uses one per CPU.
# workers: 8

# A previous JSON report (or SQLite export) whose sp_to_tables mapping seeds
# this run. A fresh catalog scan overrides it.
prior_report: ""

catalog:
  # sqlserver or sqlite. The DSN may also come from SPROCMAP_CATALOG_DSN.
  driver: sqlserver
  dsn: ""
  # Alternatively, a directory of exported .sql scripts.
  dir: ""
  timeout: 30s
  retries: 2
  # SQL LIKE pattern selecting procedures. Empty uses the driver default.
  name_like: ""

callsite:
  # Extra call-site patterns. group selects the capture holding the name.
  patterns:
    # - name: legacy-helper
    #   expr: 'legacy\.call\(["'']([\w.]+)'
    #   group: 1
  replace_defaults: false

output:
  json: ""
  text: ""
  sqlite: ""
`
