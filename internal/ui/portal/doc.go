// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package portal provides the educagestao terminal UI.

The portal is a Bubble Tea program driving the session manager: it signs
users in, shows the school areas their role may see and keeps the screen in
step with the session lifecycle.

# Screens

  - Access selection: any role, administrative or education professional
  - Login form: email, password and the "remember me" toggle
  - Home: school areas gated by view_<resource>, with the create, edit and
    delete actions of the selected area
  - Session: login time, expiry, tier and granted capability tokens
  - Role: the role description rendered with glamour

# Session lifecycle

Every key and mouse event is reported to the manager as activity. Manager
events reach the program through a non-blocking bridge, and a watcher on the
durable session file triggers a re-check when another process signs in or
out. A periodic re-check catches the hard expiry.

Manager and gate calls are made from tea.Cmds only, never from Update or
View: the manager publishes events synchronously and the bridge forwards them
to the event loop.
*/
package portal
