// Package config provides configuration structures and utilities for flatscout.
// It defines the search defaults, the site catalogue, storage, messaging and
// logging settings, and loads them from the .flatscout file, a .env file and
// the environment.
package config
