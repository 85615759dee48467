// Package secret expands references inside configuration values.
//
// Two forms are recognized in string values:
//   - Environment variables: ${DB_HOST}. A missing variable is an error;
//     $$ emits a literal $.
//   - Secret references: secretref:<provider>:<ref>, either as the whole
//     value or inline ("Bearer secretref:file:api_token").
//
// Providers resolve references. EnvProvider reads the process
// environment; FileProvider reads one file per secret from a directory,
// the layout used by container secret mounts. Resolver.ResolveTree walks
// a decoded document subtree and returns a resolved copy, leaving the
// source untouched so references survive a save.
package secret
