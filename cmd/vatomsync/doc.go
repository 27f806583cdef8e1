// Command vatomsync runs the sync engine as a daemon: it connects the push
// channel, keeps the signed-in user's inventory in step with the platform
// and serves the inspector API.
//
// Configuration comes from the environment (see the config package) with an
// optional YAML or TOML file overlay:
//
//	vatomsync -config vatomsync.yaml
package main
