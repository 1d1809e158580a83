// Package config loads and validates the proxy configuration.
//
// # Configuration Loading
//
// Load merges, in increasing precedence:
//
//  1. Default values (defined in defaults.go)
//  2. A JSON file, or YAML when the name ends in .yaml/.yml
//  3. ESPROXY_* environment variables
//  4. Programmatic Overrides
//
// When no path is given, ./proxy.json is tried. A missing, unreadable or
// malformed file is logged and the defaults are used, unless
// LoadOptions.Strict is set. A well-formed file whose seeds is not an array
// or whose allow is not an object is always rejected, as is any
// configuration that fails Validate. Errors surface before the proxy opens
// its listening socket.
//
// # File Format
//
//	{
//	  "seeds": ["es1:9200", "es2:9200"],
//	  "allow": {
//	    "GET": ["(_search|_status|_mapping)"],
//	    "POST": ["_search"],
//	    "OPTIONS": [".*"]
//	  },
//	  "refresh": 10000,
//	  "port": 8124,
//	  "host": "127.0.0.1",
//	  "telemetry": {"logging": {"level": "debug"}}
//	}
//
// Allow patterns are regular expressions matched anywhere in the request
// path. Methods missing from allow are denied.
//
// # Environment Variables
//
//   - ESPROXY_HOST, ESPROXY_PORT
//   - ESPROXY_SEEDS (comma separated)
//   - ESPROXY_REFRESH (milliseconds)
//   - ESPROXY_LOG_LEVEL, ESPROXY_LOG_FORMAT
//   - ESPROXY_ADMIN_ADDRESS
//
// # Reloading
//
// Configuration is immutable for the life of the process. FileWatcher only
// reports that the file changed so that a restart can be scheduled.
package config
