package webview

// MaxPendingInvokes caps the webview-side pending map. Invocations past the
// cap reject immediately so a stalled backend cannot leak promises without
// bound.
const MaxPendingInvokes = 1000

// InjectionScript returns the webview-side IPC client. It is injected at
// document start, is idempotent, and publishes window.__silk exactly once.
func InjectionScript() string {
	return bridgeScript
}

const bridgeScript = `(function () {
  "use strict";
  if (window.__silk) {
    return;
  }

  var MAX_PENDING = 1000;
  var nextCallback = 1;
  var pending = {};
  var pendingCount = 0;
  var listeners = {};

  function findTransport() {
    try {
      if (window.webkit && window.webkit.messageHandlers) {
        var handlers = window.webkit.messageHandlers;
        if (handlers.silk && handlers.silk.postMessage) {
          return function (msg) { handlers.silk.postMessage(msg); };
        }
        if (handlers.silk_ipc && handlers.silk_ipc.postMessage) {
          return function (msg) { handlers.silk_ipc.postMessage(msg); };
        }
      }
    } catch (err) {
      // Probing webkit handlers can throw on non-WebKit hosts.
    }
    if (window.chrome && window.chrome.webview && window.chrome.webview.postMessage) {
      return function (msg) { window.chrome.webview.postMessage(msg); };
    }
    if (typeof window.__silkPostMessage === "function") {
      return function (msg) { window.__silkPostMessage(msg); };
    }
    return null;
  }

  var silk = {
    invoke: function (cmd, args) {
      return new Promise(function (resolve, reject) {
        if (pendingCount >= MAX_PENDING) {
          reject(new Error("Silk invoke limit reached"));
          return;
        }
        var post = findTransport();
        if (!post) {
          reject(new Error("Silk transport unavailable"));
          return;
        }
        var callback = nextCallback;
        nextCallback += 1;
        pending[callback] = { resolve: resolve, reject: reject };
        pendingCount += 1;
        post(JSON.stringify({
          kind: "invoke",
          callback: callback,
          cmd: cmd,
          args: args === undefined ? null : args
        }));
      });
    },

    listen: function (event, handler) {
      if (!listeners[event]) {
        listeners[event] = [];
      }
      listeners[event].push(handler);
      return function unlisten() {
        var subs = listeners[event];
        if (!subs) {
          return;
        }
        var idx = subs.indexOf(handler);
        if (idx >= 0) {
          subs.splice(idx, 1);
        }
      };
    },

    __dispatch: function (msg) {
      if (!msg || typeof msg !== "object") {
        return;
      }
      if (msg.kind === "response") {
        var entry = pending[msg.callback];
        if (!entry) {
          return;
        }
        delete pending[msg.callback];
        pendingCount -= 1;
        if (msg.ok) {
          entry.resolve(msg.result);
          return;
        }
        var detail = msg.error;
        var failure = new Error(
          detail && detail.message !== undefined ? detail.message : detail
        );
        if (detail && detail.code !== undefined) {
          failure.code = detail.code;
        }
        entry.reject(failure);
        return;
      }
      if (msg.kind === "event") {
        var subs = listeners[msg.event] || [];
        for (var i = 0; i < subs.length; i += 1) {
          try {
            subs[i](msg.payload);
          } catch (err) {
            // A broken listener must not break its siblings.
          }
        }
      }
    }
  };

  window.__silk = silk;
})();
`
