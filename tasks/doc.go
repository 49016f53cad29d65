// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package tasks models the host task-queue boundary.
//
// All bulk orchestration work happens in discrete task messages: a task
// consumes a run id, does bounded work against storage and the provider
// adapter, and either finishes or enqueues a follow-up task. Waiting on a
// non-terminal batch is expressed by re-enqueueing a poll task, never by
// blocking a goroutine.
//
// Delivery is at-least-once. Handlers must be safe under duplicate and
// concurrent execution for the same run id; the orchestration core achieves
// this through idempotent storage writes keyed by stable identifiers.
package tasks
