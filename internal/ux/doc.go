// Package ux keeps per-machine interface preferences for the terminal client:
// color theme, the last username that signed in, footer hints and a few local
// usage counters.
//
// Preferences live in preferences.json under the data directory, next to but
// separate from the session store. Signing out clears the session and leaves
// preferences untouched, so nothing here may carry a credential or a role
// identifier.
package ux
